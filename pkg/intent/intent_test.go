package intent

import "testing"

func TestClassify(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		query string
		want  string
	}{
		{"Will it rain in Gachibowli today?", "weather"},
		{"best biryani near me", "food"},
		{"traffic on the way to hitec city", "traffic"},
		{"tell me about Charminar", "monuments"},
		{"petrol price today", "fuel"},
		{"any concerts this weekend", "events"},
		{"power cut in my area", "utilities"},
		{"hello there", "chat"},
	}

	for _, tc := range cases {
		if got := c.Classify(tc.query); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestClassifyOrderPrecedence(t *testing.T) {
	c := NewClassifier()
	if got := c.Classify("traffic near charminar"); got != "traffic" {
		t.Errorf("earlier rules should win, got %q", got)
	}
	if got := c.Classify("live deal at the mall"); got != "live_deals" {
		t.Errorf("live_deals should beat deals and shopping, got %q", got)
	}
}
