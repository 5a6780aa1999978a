package cnotes

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noteLogFor(note string, owner Owner) NoteLog {
	return NoteLog{
		LeafNode: CommitLeaf(note, owner),
		Owner:    owner,
		Note:     note,
	}
}

func TestNoteLogRoundTrip(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(3)
	for _, note := range []string{
		"",
		"a",
		"hello world",
		string(make([]byte, MaxNoteSize)),
	} {
		record := noteLogFor(note, owner)
		decoded, err := UnmarshalNoteLog(record.Marshal())
		require.NoError(t, err, "note of %d bytes", len(note))
		require.Equal(t, record, decoded)
	}
}

func TestNoteLogLayout(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(9)
	record := noteLogFor("hi", owner)
	frame := record.Marshal()
	require.Equal(t, noteLogFixedSize+2, len(frame))
	assert.Equal(t, record.LeafNode[:], frame[:32])
	assert.Equal(t, owner[:], frame[32:64])
	assert.Equal(t, []byte{2, 0, 0, 0}, frame[64:68])
	assert.Equal(t, []byte("hi"), frame[68:])
}

func TestNoteLogDecodeStrict(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(4)
	record := noteLogFor("hello", owner)
	frame := record.Marshal()

	_, err := UnmarshalNoteLog(nil)
	require.Error(t, err)
	_, err = UnmarshalNoteLog(frame[:noteLogFixedSize-1])
	require.Error(t, err)
	_, err = UnmarshalNoteLog(frame[:len(frame)-1])
	require.Error(t, err, "length prefix disagrees with body")
	_, err = UnmarshalNoteLog(append(append([]byte{}, frame...), 'x'))
	require.Error(t, err, "trailing bytes")
}

func TestNoteLogVerify(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(5)
	record := noteLogFor("hello", owner)
	require.NoError(t, record.Verify())

	tampered := record
	tampered.Note = "hellp"
	require.ErrorIs(t, tampered.Verify(), ErrIntegrityViolation)

	tampered = record
	tampered.Owner = ownerFromByte(6)
	require.ErrorIs(t, tampered.Verify(), ErrIntegrityViolation)

	tampered = record
	tampered.LeafNode[0] ^= 1
	require.ErrorIs(t, tampered.Verify(), ErrIntegrityViolation)
}

func TestNoteLogRoundTripProperty(t *testing.T) {
	t.Parallel()
	properties := gopter.NewProperties(defaultGopterParameters)
	properties.Property("decode(encode(record)) == record",
		prop.ForAll(
			func(note string, ownerBytes []byte) bool {
				if len(note) > MaxNoteSize {
					note = note[:MaxNoteSize]
				}
				var owner Owner
				copy(owner[:], ownerBytes)
				record := noteLogFor(note, owner)
				decoded, err := UnmarshalNoteLog(record.Marshal())
				return err == nil && decoded == record
			},
			gen.AnyString(), gen.SliceOfN(32, gen.UInt8())))
	properties.TestingRun(t)
}

func TestMaxNoteSize(t *testing.T) {
	t.Parallel()
	// A full-size record has to fit the reference transport's
	// ~1232-byte frame budget with room left for framing.
	require.Less(t, noteLogFixedSize+MaxNoteSize, 1232)
}
