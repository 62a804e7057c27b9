package planner

// DedupContext tracks what a generation run has accepted so far. It lives for
// one run, only grows, and must be updated in generation order.
type DedupContext struct {
	usedTitles map[string]bool
	titles     []string
	usedTokens map[string]bool
	tokens     []string
	items      []Item
}

// NewDedupContext returns an empty context.
func NewDedupContext() *DedupContext {
	return &DedupContext{
		usedTitles: map[string]bool{},
		usedTokens: map[string]bool{},
	}
}

// Accept records an item as part of the plan.
func (d *DedupContext) Accept(it Item) {
	d.items = append(d.items, it)
	if t := normalizeTitle(it.Title); t != "" && !d.usedTitles[t] {
		d.usedTitles[t] = true
		d.titles = append(d.titles, it.Title)
	}
	for _, tok := range TitleTokens(it.Title) {
		if !d.usedTokens[tok] {
			d.usedTokens[tok] = true
			d.tokens = append(d.tokens, tok)
		}
	}
}

// HasTitle reports whether an item with the same normalized title was accepted.
func (d *DedupContext) HasTitle(title string) bool {
	return d.usedTitles[normalizeTitle(title)]
}

// AvoidTitles returns up to n of the most recently accepted titles.
func (d *DedupContext) AvoidTitles(n int) []string {
	return copyLast(d.titles, n)
}

// AvoidTokens returns up to n of the most recently seen title tokens.
func (d *DedupContext) AvoidTokens(n int) []string {
	return copyLast(d.tokens, n)
}

// Items returns the accepted items in acceptance order.
func (d *DedupContext) Items() []Item {
	return append([]Item(nil), d.items...)
}

func copyLast(list []string, n int) []string {
	if n <= 0 || n > len(list) {
		n = len(list)
	}
	return append([]string(nil), list[len(list)-n:]...)
}
