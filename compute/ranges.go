package compute

import "github.com/RoaringBitmap/roaring"

// PickRange is a half-open range [From, To) of selected rows.
type PickRange struct {
	From int64
	To   int64
}

func Pick(from, to int64) PickRange {
	return PickRange{From: from, To: to}
}

func (p PickRange) NumRows() int64 { return p.To - p.From }

type Selection []PickRange

func (s Selection) NumRows() int64 {
	var n int64
	for _, r := range s {
		n += r.NumRows()
	}
	return n
}

// SelectRanges turns a set of row indices into the minimal list of
// contiguous ranges covering them.
func SelectRanges(rows *roaring.Bitmap) Selection {
	var (
		selection Selection
		it        = rows.ManyIterator()
		buf       = make([]uint32, 1024)
	)
	for n := it.NextMany(buf); n > 0; n = it.NextMany(buf) {
		for _, row := range buf[:n] {
			selection = appendRow(selection, int64(row))
		}
	}
	return selection
}

func appendRow(selection Selection, row int64) Selection {
	if len(selection) > 0 && selection[len(selection)-1].To == row {
		selection[len(selection)-1].To++
		return selection
	}
	return append(selection, Pick(row, row+1))
}
