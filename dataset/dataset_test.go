package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawFixture = `id,name,release_year,release_month,main_story,main_story_polled,main_plus_sides,main_plus_sides_polled,completionist,platform
1,Portal,2007,10,3.5,1000,5.0,500,9.5,PC
2,Portal,2007,10,3.6,900,5.1,450,9.9,Switch
3,Half-Life,1998,11,12.0,800,15.0,400,20.0,PC
4,Elden Ring,2022,2,55.0,3000,100.0,2000,130.0,PS5
5,Broken Row,2010,6,,100,8.0,90,12.0,PC
6,No Target,2012,3,7.0,200,9.0,150,,PC
7,Tunic,2022,3,11.0,600,15.0,400,21.5,PC
8,Stray,2021,7,5.0,700,7.0,500,8.5,PS5
`

func writeFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, RawFile)
	require.NoError(t, os.WriteFile(path, []byte(rawFixture), 0600))
	return path
}

func TestCleanDropsDuplicatesAndMissing(t *testing.T) {
	path := writeFixture(t, t.TempDir())
	raw, err := ReadFile(path)
	require.NoError(t, err)

	cleaned, err := Clean(raw)
	require.NoError(t, err)

	// duplicate Portal, missing main_story, missing completionist gone
	assert.Equal(t, 5, cleaned.Len())
	assert.Equal(t, cleanColumns, cleaned.Header)

	ids, err := cleaned.Column(ColID)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 4, 7, 8}, ids)
}

func TestCleanDropsRaggedRows(t *testing.T) {
	const ragged = `id,name,release_year,release_month,main_story,main_story_polled,main_plus_sides,main_plus_sides_polled,completionist,platform
1,Portal,2007,10,3.5,1000,5.0,500,9.5,PC
2,Truncated
3,Stray,2021,7,5.0,700,7.0,500,8.5,PS5
`
	dir := t.TempDir()
	path := filepath.Join(dir, RawFile)
	require.NoError(t, os.WriteFile(path, []byte(ragged), 0600))

	raw, err := ReadFile(path)
	require.NoError(t, err)

	cleaned, err := Clean(raw)
	require.NoError(t, err)
	ids, err := cleaned.Column(ColID)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, ids)

	split, err := Prepare(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, split.XTrain.Len())
	assert.Equal(t, 1, split.XTest.Len())
}

func TestCleanRequiresNameColumn(t *testing.T) {
	raw := &Table{Header: []string{"id"}, Rows: [][]string{{"1"}}}
	_, err := Clean(raw)
	assert.Error(t, err)
}

func TestPrepareSplitsByReleaseYear(t *testing.T) {
	path := writeFixture(t, t.TempDir())
	raw, err := ReadFile(path)
	require.NoError(t, err)

	split, err := Prepare(raw)
	require.NoError(t, err)

	// Portal (2007) and Half-Life (1998) train; Elden Ring, Tunic,
	// Stray are post-cutoff test rows.
	assert.Equal(t, 2, split.XTrain.Len())
	assert.Equal(t, 2, split.YTrain.Len())
	assert.Equal(t, 3, split.XTest.Len())
	assert.Equal(t, 3, split.YTest.Len())

	assert.Equal(t, TrainFeatures, split.XTrain.Header)
	assert.Equal(t, TestFeatures, split.XTest.Header)
	assert.Equal(t, []string{ColCompletionist}, split.YTrain.Header)
}

func TestPreparedTargetHasNoMissingValues(t *testing.T) {
	path := writeFixture(t, t.TempDir())
	raw, err := ReadFile(path)
	require.NoError(t, err)

	split, err := Prepare(raw)
	require.NoError(t, err)

	for _, table := range []*Table{split.YTrain, split.YTest} {
		targets, err := table.Column(ColCompletionist)
		require.NoError(t, err)
		require.Equal(t, table.Len(), len(targets))
	}
}

func TestPrepareIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir)

	outA := filepath.Join(dir, "a")
	outB := filepath.Join(dir, "b")
	for _, out := range []string{outA, outB} {
		raw, err := ReadFile(path)
		require.NoError(t, err)
		split, err := Prepare(raw)
		require.NoError(t, err)
		require.NoError(t, split.Save(out))
	}

	for _, name := range []string{FileXTrain, FileYTrain, FileXTest, FileYTest} {
		a, err := os.ReadFile(filepath.Join(outA, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(outB, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, "file %s differs between runs", name)
	}
}

func TestMatrixOrdersColumns(t *testing.T) {
	table := &Table{
		Header: []string{"a", "b"},
		Rows:   [][]string{{"1", "2"}, {"3", "4"}},
	}
	m, err := table.Matrix("b", "a")
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 1}, {4, 3}}, m)
}

func TestColumnRejectsGarbage(t *testing.T) {
	table := &Table{
		Header: []string{"a"},
		Rows:   [][]string{{"not-a-number"}},
	}
	_, err := table.Column("a")
	assert.Error(t, err)
}
