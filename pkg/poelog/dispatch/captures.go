package dispatch

// Captures gives handlers access to a rule's capture groups.
type Captures struct {
	subject string
	idx     []int
	names   []string
}

// Len returns the number of groups, including group 0 (the whole match).
func (c Captures) Len() int {
	return len(c.idx) / 2
}

// Group returns the text of the i-th group, or "" if the group did not
// participate in the match or does not exist.
func (c Captures) Group(i int) string {
	s, _ := c.group(i)
	return s
}

// Lookup returns the text of the named group and whether it participated in
// the match.
func (c Captures) Lookup(name string) (string, bool) {
	for i, n := range c.names {
		if n != "" && n == name {
			return c.group(i)
		}
	}
	return "", false
}

// Get returns the text of the named group or "".
func (c Captures) Get(name string) string {
	s, _ := c.Lookup(name)
	return s
}

// Map returns named groups that participated in the match.
// It returns nil when the pattern has no named groups.
func (c Captures) Map() map[string]string {
	var m map[string]string
	for i, n := range c.names {
		if n == "" {
			continue
		}
		if m == nil {
			m = make(map[string]string)
		}
		if s, ok := c.group(i); ok {
			m[n] = s
		}
	}
	return m
}

func (c Captures) group(i int) (string, bool) {
	if i < 0 || 2*i+1 >= len(c.idx) {
		return "", false
	}
	start, end := c.idx[2*i], c.idx[2*i+1]
	if start < 0 {
		return "", false
	}
	return c.subject[start:end], true
}
