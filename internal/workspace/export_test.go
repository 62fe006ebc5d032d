package workspace

// SetRemoveAll replaces the directory remover used by Sweep.
func (m *Manager) SetRemoveAll(fn func(string) error) {
	m.removeAll = fn
}
