package schema_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/huangsam/pts/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFrame(t *testing.T) *schema.Frame {
	t.Helper()
	f, err := schema.NewFrameFromColumns(
		&schema.Column{Name: schema.ColTestID, Kind: schema.StringKind, Values: schema.StringValues("t1", "t2", "t3")},
		&schema.Column{Name: schema.ColChurn, Kind: schema.FloatKind, Values: schema.FloatValues(10, 20, 30)},
		&schema.Column{Name: schema.ColDefaultTarget, Kind: schema.IntKind, Values: schema.IntValues(1, 0, 1)},
	)
	require.NoError(t, err)
	return f
}

func TestFrameBasics(t *testing.T) {
	f := newTestFrame(t)

	assert.Equal(t, 3, f.Len())
	assert.Equal(t, 3, f.Width())
	assert.Equal(t, []string{schema.ColTestID, schema.ColChurn, schema.ColDefaultTarget}, f.Columns())
	assert.True(t, f.Has(schema.ColChurn))
	assert.False(t, f.Has("missing"))
	assert.Equal(t, schema.FloatKind, f.Kind(schema.ColChurn))
	assert.Equal(t, schema.ColumnKind(""), f.Kind("missing"))
}

func TestFrameAddColumn(t *testing.T) {
	t.Run("length mismatch", func(t *testing.T) {
		f := newTestFrame(t)
		err := f.AddColumn("x", schema.IntKind, schema.IntValues(1))
		require.Error(t, err)
		assert.True(t, errors.Is(err, schema.ErrSchema))
	})

	t.Run("kind mismatch", func(t *testing.T) {
		f := newTestFrame(t)
		err := f.AddColumn("x", schema.IntKind, []any{"a", "b", "c"})
		require.Error(t, err)
	})

	t.Run("replace keeps position", func(t *testing.T) {
		f := newTestFrame(t)
		require.NoError(t, f.AddColumn(schema.ColChurn, schema.IntKind, []any{1, 2, 3}))
		assert.Equal(t, []string{schema.ColTestID, schema.ColChurn, schema.ColDefaultTarget}, f.Columns())
		c, ok := f.Column(schema.ColChurn)
		require.True(t, ok)
		if diff := cmp.Diff([]any{int64(1), int64(2), int64(3)}, c.Values); diff != "" {
			t.Errorf("values mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nulls allowed", func(t *testing.T) {
		f := newTestFrame(t)
		require.NoError(t, f.AddColumn("x", schema.FloatKind, []any{1.0, nil, 3.0}))
		c, _ := f.Column("x")
		assert.Equal(t, 1, c.NullCount())
		assert.True(t, c.IsNull(1))
	})
}

func TestFrameDropSelectDoNotMutate(t *testing.T) {
	f := newTestFrame(t)

	dropped := f.Drop(schema.ColChurn, "not-there")
	assert.Equal(t, []string{schema.ColTestID, schema.ColDefaultTarget}, dropped.Columns())
	assert.Equal(t, 3, f.Width())

	selected, err := f.Select(schema.ColDefaultTarget, schema.ColTestID)
	require.NoError(t, err)
	assert.Equal(t, []string{schema.ColDefaultTarget, schema.ColTestID}, selected.Columns())

	_, err = f.Select("nope")
	assert.ErrorIs(t, err, schema.ErrSchema)
}

func TestFrameFilterAndTake(t *testing.T) {
	f := newTestFrame(t)
	target, _ := f.Column(schema.ColDefaultTarget)

	failed := f.Filter(func(i int) bool { return target.Values[i] == int64(1) })
	ids, err := failed.Strings(schema.ColTestID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t3"}, ids)

	repeated := f.Take([]int{2, 2, 0})
	ids, err = repeated.Strings(schema.ColTestID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t3", "t1"}, ids)
}

func TestFrameNumericAccess(t *testing.T) {
	f := newTestFrame(t)

	assert.Equal(t, []string{schema.ColChurn}, f.NumericColumns(schema.ColDefaultTarget))

	vals, err := f.Float64s(schema.ColDefaultTarget)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, vals)

	_, err = f.Float64s(schema.ColTestID)
	assert.ErrorIs(t, err, schema.ErrSchema)

	m, err := f.RowsOf([]string{schema.ColChurn, schema.ColDefaultTarget})
	require.NoError(t, err)
	assert.Equal(t, []string{schema.ColChurn, schema.ColDefaultTarget}, m.Columns)
	assert.Equal(t, [][]float64{{10, 1}, {20, 0}, {30, 1}}, m.Rows)
}

func TestFrameFloat64sRejectsNulls(t *testing.T) {
	f := newTestFrame(t)
	require.NoError(t, f.AddColumn("x", schema.FloatKind, []any{1.0, nil, 3.0}))

	_, err := f.Float64s("x")
	var se *schema.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"x"}, se.Columns)
}

func TestFrameCloneIsDeep(t *testing.T) {
	f := newTestFrame(t)
	c := f.Clone()
	col, _ := c.Column(schema.ColChurn)
	col.Values[0] = 99.0

	orig, _ := f.Column(schema.ColChurn)
	assert.Equal(t, 10.0, orig.Values[0])
}

func TestSchemaErrorMessage(t *testing.T) {
	err := schema.NewSchemaError("selector", "target column not found", "test_failed")
	assert.Equal(t, "selector: target column not found [test_failed]", err.Error())
	assert.ErrorIs(t, err, schema.ErrSchema)
}
