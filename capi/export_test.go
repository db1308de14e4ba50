package capi

// NumPayloads returns the number of live payload handles.
func (b *Bridge) NumPayloads() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.payloads.Len()
}
