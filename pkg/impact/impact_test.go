package impact

import (
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
	"github.com/dd0wney/cluso-lineage/pkg/traversal"
)

const tolerance = 1e-12

type link struct {
	from, to lineage.NodeID
	conf     float64
}

func graphOf(links ...link) *lineage.Graph {
	g := lineage.NewGraph()
	for _, l := range links {
		g.AddNode(lineage.Node{ID: l.from})
		g.AddNode(lineage.Node{ID: l.to})
		g.AddEdge(lineage.Edge{Source: l.from, Target: l.to, RelationshipType: "feeds", Confidence: l.conf})
	}
	return g
}

func analyze(t *testing.T, g *lineage.Graph, root lineage.NodeID, dir lineage.Direction, maxDepth int, opts Options) *Report {
	t.Helper()
	tr, err := traversal.Traverse(g, []lineage.NodeID{root}, dir, traversal.Options{MaxDepth: maxDepth})
	require.NoError(t, err)
	report, err := Score(g, tr, opts)
	require.NoError(t, err)
	return report
}

func scoreOf(t *testing.T, r *Report, id lineage.NodeID) float64 {
	t.Helper()
	e, ok := r.Entry(id, lineage.Downstream)
	require.True(t, ok, "no entry for %s", id)
	require.NotNil(t, e.Score, "nil score for %s", id)
	return *e.Score
}

func TestScore_Chain(t *testing.T) {
	g := graphOf(link{"A", "B", 1}, link{"B", "C", 1})
	r := analyze(t, g, "A", lineage.Downstream, 5, DefaultOptions())

	assert.InDelta(t, 1.0, scoreOf(t, r, "A"), tolerance)
	assert.InDelta(t, 0.9, scoreOf(t, r, "B"), tolerance)
	assert.InDelta(t, 0.81, scoreOf(t, r, "C"), tolerance)

	c, _ := r.Entry("C", lineage.Downstream)
	assert.Equal(t, RiskHigh, c.Risk)
	assert.Len(t, c.ContributingPath, 2)

	cp := FindCriticalPath(r)
	require.NotNil(t, cp)
	assert.Equal(t, []lineage.NodeID{"A", "B", "C"}, cp.NodeIDs)
	assert.InDelta(t, 0.9+0.81, cp.Weight, tolerance)
	assert.InDelta(t, 0.81, cp.EndScore, tolerance)
}

func TestScore_Diamond(t *testing.T) {
	g := graphOf(link{"A", "B", 1}, link{"B", "D", 1}, link{"A", "C", 1}, link{"C", "D", 0.5})
	r := analyze(t, g, "A", lineage.Downstream, 5, DefaultOptions())

	assert.InDelta(t, 0.81, scoreOf(t, r, "D"), tolerance)

	d, _ := r.Entry("D", lineage.Downstream)
	require.Len(t, d.ContributingPath, 2)
	assert.Equal(t, lineage.NodeID("B"), d.ContributingPath[0].Target)

	cp := FindCriticalPath(r)
	require.NotNil(t, cp)
	assert.Equal(t, []lineage.NodeID{"A", "B", "D"}, cp.NodeIDs)
	assert.Equal(t, lineage.Downstream, cp.Direction)
	assert.Len(t, cp.Edges, 2)
}

func TestCriticalPath_LongerPathOutweighsHighestEndScore(t *testing.T) {
	g := graphOf(
		link{"R", "X", 1},
		link{"R", "Y", 0.5},
		link{"Y", "Z", 1},
		link{"Z", "W", 1},
	)
	r := analyze(t, g, "R", lineage.Downstream, 5, DefaultOptions())

	assert.InDelta(t, 0.9, scoreOf(t, r, "X"), tolerance)

	cp := FindCriticalPath(r)
	require.NotNil(t, cp)
	assert.Equal(t, []lineage.NodeID{"R", "Y", "Z", "W"}, cp.NodeIDs)
	assert.InDelta(t, 0.45+0.405+0.3645, cp.Weight, tolerance)
	assert.InDelta(t, 0.3645, cp.EndScore, tolerance)
}

func TestScore_Cycle(t *testing.T) {
	g := graphOf(link{"A", "B", 1}, link{"B", "A", 1})
	r := analyze(t, g, "A", lineage.Downstream, 10, DefaultOptions())

	assert.Len(t, r.Entries, 2)
	assert.InDelta(t, 0.9, scoreOf(t, r, "B"), tolerance)
}

func TestScore_MaxDepthZeroHasNoCriticalPath(t *testing.T) {
	g := graphOf(link{"A", "B", 1})
	r := analyze(t, g, "A", lineage.Downstream, 0, DefaultOptions())

	require.Len(t, r.Entries, 1)
	assert.True(t, r.Entries[0].Root)
	assert.Nil(t, FindCriticalPath(r))
	assert.Nil(t, FindCriticalPath(nil))
}

func TestScore_ConfidenceReducesScore(t *testing.T) {
	g := graphOf(link{"A", "B", 0.5}, link{"B", "C", 0.8})
	r := analyze(t, g, "A", lineage.Downstream, 5, DefaultOptions())

	assert.InDelta(t, 0.45, scoreOf(t, r, "B"), tolerance)
	assert.InDelta(t, 0.45*0.72, scoreOf(t, r, "C"), tolerance)

	b, _ := r.Entry("B", lineage.Downstream)
	c, _ := r.Entry("C", lineage.Downstream)
	assert.Equal(t, RiskMedium, b.Risk)
	assert.Equal(t, RiskLow, c.Risk)
}

func TestScore_IncompleteNode(t *testing.T) {
	g := graphOf(link{"A", "B", 1}, link{"B", "C", 1}, link{"A", "X", 1})
	g.MarkIncomplete("B")
	r := analyze(t, g, "A", lineage.Downstream, 5, DefaultOptions())

	b, ok := r.Entry("B", lineage.Downstream)
	require.True(t, ok, "incomplete nodes stay in the report")
	assert.Nil(t, b.Score)
	assert.Equal(t, RiskUnknown, b.Risk)
	assert.True(t, b.Incomplete)

	cp := FindCriticalPath(r)
	require.NotNil(t, cp)
	assert.Equal(t, []lineage.NodeID{"A", "X"}, cp.NodeIDs, "paths through an incomplete node are not candidates")
	assert.Equal(t, 1, r.CountByRisk()[RiskUnknown])
}

func TestScore_Both(t *testing.T) {
	g := graphOf(link{"up", "r", 1}, link{"r", "down", 0.5}, link{"down", "up", 1})
	r := analyze(t, g, "r", lineage.Both, 1, DefaultOptions())

	assert.Len(t, r.ForNode("r"), 2)

	down, ok := r.Entry("down", lineage.Downstream)
	require.True(t, ok)
	assert.InDelta(t, 0.45, *down.Score, tolerance)

	up, ok := r.Entry("up", lineage.Upstream)
	require.True(t, ok)
	assert.InDelta(t, 0.9, *up.Score, tolerance)

	cp := FindCriticalPath(r)
	require.NotNil(t, cp)
	assert.Equal(t, lineage.Upstream, cp.Direction)
	assert.Equal(t, []lineage.NodeID{"r", "up"}, cp.NodeIDs)
}

func TestRiskClassification(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{1.0, RiskHigh},
		{0.7, RiskHigh},
		{0.6999, RiskMedium},
		{0.4, RiskMedium},
		{0.3999, RiskLow},
		{0, RiskLow},
	}

	th := DefaultThresholds()
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.score), func(t *testing.T) {
			assert.Equal(t, tt.want, th.Classify(tt.score))
		})
	}

	custom := RiskThresholds{High: 0.9, Medium: 0.5}
	assert.Equal(t, RiskMedium, custom.Classify(0.8))
}

func TestCriticalPath_TieBreaks(t *testing.T) {
	t.Run("shorter path wins an equal weight", func(t *testing.T) {
		g := graphOf(link{"r", "x", 1}, link{"r", "y", 0.5}, link{"y", "z", 1})
		opts := DefaultOptions()
		opts.DecayFactor = 1
		r := analyze(t, g, "r", lineage.Downstream, 3, opts)

		cp := FindCriticalPath(r)
		require.NotNil(t, cp)
		assert.Equal(t, []lineage.NodeID{"r", "x"}, cp.NodeIDs)
	})

	t.Run("lexical node sequence breaks remaining ties", func(t *testing.T) {
		g := graphOf(link{"r", "b", 1}, link{"r", "a", 1})
		r := analyze(t, g, "r", lineage.Downstream, 1, DefaultOptions())

		cp := FindCriticalPath(r)
		require.NotNil(t, cp)
		assert.Equal(t, []lineage.NodeID{"r", "a"}, cp.NodeIDs)
	})

	t.Run("deeper path with more cumulative impact wins", func(t *testing.T) {
		g := graphOf(link{"r", "a", 1}, link{"r", "b", 1}, link{"b", "c", 1})
		r := analyze(t, g, "r", lineage.Downstream, 2, DefaultOptions())

		cp := FindCriticalPath(r)
		require.NotNil(t, cp)
		assert.Equal(t, []lineage.NodeID{"r", "b", "c"}, cp.NodeIDs)
	})
}

func TestScore_Validation(t *testing.T) {
	g := graphOf(link{"A", "B", 0.3})
	tr, err := traversal.Traverse(g, []lineage.NodeID{"A"}, lineage.Downstream, traversal.Options{MaxDepth: 1})
	require.NoError(t, err)

	tests := []struct {
		name string
		opts Options
	}{
		{"decay above one", Options{DecayFactor: 1.5, Thresholds: DefaultThresholds()}},
		{"negative decay", Options{DecayFactor: -0.1, Thresholds: DefaultThresholds()}},
		{"NaN threshold", Options{DecayFactor: 0.9, ConfidenceThreshold: math.NaN(), Thresholds: DefaultThresholds()}},
		{"inverted bands", Options{DecayFactor: 0.9, Thresholds: RiskThresholds{High: 0.3, Medium: 0.6}}},
		{"path below threshold", Options{DecayFactor: 0.9, ConfidenceThreshold: 0.5, Thresholds: DefaultThresholds()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Score(g, tr, tt.opts)
			assert.ErrorIs(t, err, lineage.ErrInvalidConfig)
		})
	}

	_, err = Score(nil, tr, DefaultOptions())
	assert.ErrorIs(t, err, lineage.ErrInvalidConfig)
}

func TestScoreProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	build := func(pairs []int, confs []float64) *lineage.Graph {
		g := lineage.NewGraph()
		for i := 0; i < 8; i++ {
			g.AddNode(lineage.Node{ID: lineage.NodeID(fmt.Sprintf("n%d", i))})
		}
		for i, p := range pairs {
			conf := 1.0
			if len(confs) > 0 {
				conf = confs[i%len(confs)]
			}
			g.AddEdge(lineage.Edge{
				Source:           lineage.NodeID(fmt.Sprintf("n%d", p/8)),
				Target:           lineage.NodeID(fmt.Sprintf("n%d", p%8)),
				RelationshipType: "feeds",
				Confidence:       conf,
			})
		}
		return g
	}

	properties.Property("score never exceeds decay^distance", prop.ForAll(
		func(pairs []int, confs []float64, decay float64) bool {
			g := build(pairs, confs)
			tr, err := traversal.Traverse(g, []lineage.NodeID{"n0"}, lineage.Both, traversal.Options{MaxDepth: 6})
			if err != nil {
				return false
			}
			r, err := Score(g, tr, Options{DecayFactor: decay, Thresholds: DefaultThresholds()})
			if err != nil {
				return false
			}
			for _, e := range r.Entries {
				if *e.Score > math.Pow(decay, float64(e.Distance))+tolerance {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 63)),
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.Float64Range(0, 1),
	))

	properties.Property("full confidence reaches the bound exactly", prop.ForAll(
		func(pairs []int, decay float64) bool {
			g := build(pairs, nil)
			tr, err := traversal.Traverse(g, []lineage.NodeID{"n0"}, lineage.Downstream, traversal.Options{MaxDepth: 6})
			if err != nil {
				return false
			}
			r, err := Score(g, tr, Options{DecayFactor: decay, Thresholds: DefaultThresholds()})
			if err != nil {
				return false
			}
			for _, e := range r.Entries {
				if math.Abs(*e.Score-math.Pow(decay, float64(e.Distance))) > 1e-9 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 63)),
		gen.Float64Range(0, 1),
	))

	properties.Property("critical path is deterministic", prop.ForAll(
		func(pairs []int, confs []float64) bool {
			var paths [2]*CriticalPath
			for i := range paths {
				g := build(pairs, confs)
				tr, err := traversal.Traverse(g, []lineage.NodeID{"n0"}, lineage.Both, traversal.Options{MaxDepth: 5})
				if err != nil {
					return false
				}
				r, err := Score(g, tr, DefaultOptions())
				if err != nil {
					return false
				}
				paths[i] = FindCriticalPath(r)
			}
			if paths[0] == nil || paths[1] == nil {
				return paths[0] == nil && paths[1] == nil
			}
			return fmt.Sprint(paths[0].NodeIDs) == fmt.Sprint(paths[1].NodeIDs) &&
				paths[0].Direction == paths[1].Direction
		},
		gen.SliceOf(gen.IntRange(0, 63)),
		gen.SliceOf(gen.Float64Range(0, 1)),
	))

	properties.TestingRun(t)
}
