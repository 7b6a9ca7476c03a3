package message

import (
	"reflect"
	"testing"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

func TestASPathEncodeDecodeRoundTripTwoOctet(t *testing.T) {
	segs := []Segment{{Type: SegASSequence, AS: []bgp.ASN{65001, 65002}}}
	a := NewASPath(segs, false)
	decoded, err := decodeASPath(a.Value(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decoded.(ASPath)
	if !reflect.DeepEqual(got.Segments, segs) {
		t.Fatalf("got %+v, want %+v", got.Segments, segs)
	}
}

func TestASPathEncodeDecodeRoundTripFourOctet(t *testing.T) {
	segs := []Segment{{Type: SegASSequence, AS: []bgp.ASN{400000, 65002}}}
	a := NewASPath(segs, true)
	decoded, err := decodeASPath(a.Value(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decoded.(ASPath)
	if !reflect.DeepEqual(got.Segments, segs) {
		t.Fatalf("got %+v, want %+v", got.Segments, segs)
	}
}

func TestDecodeASPathRejectsUnknownSegmentType(t *testing.T) {
	b := []byte{0x09, 0x01, 0x00, 0x01} // segment type 9 is not a defined SegmentType
	_, err := decodeASPath(b, false)
	assertNotify(t, err, NotifyUpdate, SubUpdateMalformedASPath)
}

func TestDecodeASPathRejectsTruncatedASList(t *testing.T) {
	b := []byte{byte(SegASSequence), 0x02, 0x00, 0x01} // claims 2 ASes, provides 1
	_, err := decodeASPath(b, false)
	assertNotify(t, err, NotifyUpdate, SubUpdateMalformedASPath)
}

func TestAS4PathEncodeDecodeRoundTrip(t *testing.T) {
	segs := []Segment{{Type: SegASSequence, AS: []bgp.ASN{65001, 4200000000}}}
	a := AS4Path{Segments: segs}
	decoded, err := decodeAS4Path(a.Value())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(decoded.(AS4Path).Segments, segs) {
		t.Fatalf("got %+v, want %+v", decoded.(AS4Path).Segments, segs)
	}
}

func asns(vals ...uint32) []bgp.ASN {
	out := make([]bgp.ASN, len(vals))
	for i, v := range vals {
		out[i] = bgp.ASN(v)
	}
	return out
}

func TestMergeAS4PathReplacesTrailingSequence(t *testing.T) {
	asPath := []Segment{
		{Type: SegASSequence, AS: asns(1, 2)},
		{Type: SegASSequence, AS: asns(23456, 23456)},
	}
	as4Path := []Segment{{Type: SegASSequence, AS: asns(400001, 400002)}}

	got := MergeAS4Path(asPath, as4Path)
	want := []Segment{
		{Type: SegASSequence, AS: asns(1, 2)},
		{Type: SegASSequence, AS: asns(400001, 400002)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMergeAS4PathLeavesASPathUnchangedWhenAS4PathEmpty(t *testing.T) {
	asPath := []Segment{{Type: SegASSequence, AS: asns(1, 2, 3)}}
	got := MergeAS4Path(asPath, nil)
	if !reflect.DeepEqual(got, asPath) {
		t.Fatalf("got %+v, want AS_PATH unchanged: %+v", got, asPath)
	}
}

func TestMergeAS4PathLeavesASPathUnchangedWhenShorterThanAS4Path(t *testing.T) {
	asPath := []Segment{{Type: SegASSequence, AS: asns(1)}}
	as4Path := []Segment{{Type: SegASSequence, AS: asns(400001, 400002)}}
	got := MergeAS4Path(asPath, as4Path)
	if !reflect.DeepEqual(got, asPath) {
		t.Fatalf("got %+v, want AS_PATH unchanged (shorter than AS4_PATH): %+v", got, asPath)
	}
}

func TestMergeAS4PathStopsAtASSet(t *testing.T) {
	// The trailing AS_SET must never be spliced into or consumed by the merge,
	// even though it sits inside the suffix AS4_PATH's length would otherwise reach.
	asPath := []Segment{
		{Type: SegASSequence, AS: asns(1, 23456)},
		{Type: SegASSet, AS: asns(99, 100)},
	}
	as4Path := []Segment{{Type: SegASSequence, AS: asns(400001)}}

	got := MergeAS4Path(asPath, as4Path)
	want := []Segment{
		{Type: SegASSequence, AS: asns(1, 23456)},
		{Type: SegASSet, AS: asns(99, 100)},
		{Type: SegASSequence, AS: asns(400001)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMergeAS4PathPartiallyConsumesASegment(t *testing.T) {
	asPath := []Segment{{Type: SegASSequence, AS: asns(1, 2, 3, 23456)}}
	as4Path := []Segment{{Type: SegASSequence, AS: asns(400001)}}

	got := MergeAS4Path(asPath, as4Path)
	// The partially-consumed segment is trimmed in place, then AS4_PATH's
	// segment is appended after it rather than folded into the same segment.
	want := []Segment{
		{Type: SegASSequence, AS: asns(1, 2, 3)},
		{Type: SegASSequence, AS: asns(400001)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
