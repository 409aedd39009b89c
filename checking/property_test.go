package checking

import "testing"

func positive(i int) bool { return i > 0 }

func TestDiscover(t *testing.T) {
	for i, test := range discoverTest {
		out := test.prop.Discover(test.state, test.terminal)
		if out != test.expected {
			t.Errorf("Received unexpected discovery from %v property on test %v. Got %v", test.prop.Expectation, i, out)
		}
	}
}

var discoverTest = []struct {
	prop     Property[int]
	state    int
	terminal bool
	expected bool
}{
	{Always("positive", positive), 1, false, false},
	{Always("positive", positive), -1, false, true},
	{Always("positive", positive), -1, true, true},
	{Sometimes("positive", positive), 1, false, true},
	{Sometimes("positive", positive), -1, true, false},
	{Eventually("positive", positive), -1, false, false},
	{Eventually("positive", positive), -1, true, true},
	{Eventually("positive", positive), 1, true, false},
}

func TestDiscoveryIsFailure(t *testing.T) {
	if !ExpectAlways.DiscoveryIsFailure() || !ExpectEventually.DiscoveryIsFailure() {
		t.Errorf("Expected discoveries of always and eventually properties to be failures")
	}
	if ExpectSometimes.DiscoveryIsFailure() {
		t.Errorf("Did not expect a discovery of a sometimes property to be a failure")
	}
}

func TestForAll(t *testing.T) {
	for i, test := range forAllTest {
		out := ForAll(test.states, positive)
		if out != test.expected {
			t.Errorf("Received unexpected result on test %v. Got %v", i, out)
		}
	}
}

var forAllTest = []struct {
	states   []int
	expected bool
}{
	{nil, true},
	{[]int{1, 2, 3}, true},
	{[]int{1, -2, 3}, false},
}
