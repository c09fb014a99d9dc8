package conceptual

// SourceID identifies an upstream reporting source,
// eg. the Signal K "$source" of a delta update ("n2k-on-ve.can-socket.3").
type SourceID string

func (s SourceID) String() string {
	return string(s)
}

func (s SourceID) Empty() bool {
	return s == ""
}
