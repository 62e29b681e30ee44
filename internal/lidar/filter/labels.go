package filter

// IgnoreLabel is the class assigned to labels with no mapping.
const IgnoreLabel uint32 = 0

// Relabel maps raw label ids to training classes. Ids missing from table map
// to IgnoreLabel. The input is not modified.
func Relabel(labels []uint32, table map[uint32]uint32) []uint32 {
	out := make([]uint32, len(labels))
	for i, l := range labels {
		if v, ok := table[l]; ok {
			out[i] = v
		}
	}
	return out
}
