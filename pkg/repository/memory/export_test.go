package memory

var WithGateClock = withGateClock

func (g *PublishGate) EntryCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
