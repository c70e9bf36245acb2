package replay

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisuehlinger/viewwatch/config"
	"github.com/chrisuehlinger/viewwatch/geometry"
	"github.com/chrisuehlinger/viewwatch/scene"
)

const page = `<html style="width: 1000px; height: 800px">
<body>
  <div id="hero" style="left: 100px; top: 100px; width: 50px; height: 50px"></div>
  <div id="corner" style="left: 990px; top: 790px; width: 100px; height: 100px"></div>
  <div id="footer" style="left: 0; top: 2000px; width: 1000px; height: 10px"></div>
  <div id="carousel" style="left: 0; top: 300px; width: 300px; height: 100px; overflow-x: hidden">
    <div id="slide1" style="left: 0; top: 300px; width: 300px; height: 100px"></div>
    <div id="slide2" style="left: 300px; top: 300px; width: 300px; height: 100px"></div>
  </div>
</body>
</html>`

func setup(t *testing.T, yaml string) (*scene.Document, *config.Config) {
	t.Helper()
	doc, err := scene.ParseString(page, geometry.NewSize(1000, 800))
	require.NoError(t, err)
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return doc, cfg
}

func TestRunPrintsEachBatch(t *testing.T) {
	doc, cfg := setup(t, `
observe: [hero, corner, footer]
script:
  - scroll: {y: 1300}
  - scroll: {y: 0}
  - wait_ms: 10
  - emit: {event: resize}
  - unobserve: hero
  - wait_ms: 10
  - resize: {width: 1100, height: 900}
  - disconnect: true
  - wait_ms: 10
  - scroll: {y: 10}
`)

	var out bytes.Buffer
	batches, err := Run(context.Background(), doc, cfg, &out, nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"[0s] initial: hero=1",
		"[0s] initial: corner=0.01",
		"[0s] scroll document to 0,1300: footer=1",
		"[10ms] emit resize on window: hero=1 corner=0.01",
		"[20ms] resize to 1100x900: corner=1",
	}, lines)

	require.Len(t, batches, 5)
	assert.Equal(t, -1, batches[0].Step)
	assert.Equal(t, 0, batches[2].Step)
	assert.Equal(t, 3, batches[3].Step)
	assert.Equal(t, []string{"hero", "corner"}, batches[3].IDs())
	assert.Equal(t, 6, batches[4].Step)
}

func TestRunWithSecondaryAreaAndTrigger(t *testing.T) {
	doc, cfg := setup(t, `
observer:
  secondary_scroll_area: carousel
  blocking_time_ms: 0
  trigger: {target: carousel, event: slid}
observe: [slide1, slide2]
script:
  - scroll: {target: carousel, x: 150}
  - wait_ms: 0
  - emit: {target: carousel, event: slid}
  - emit: {target: carousel, event: slid}
`)

	batches, err := Run(context.Background(), doc, cfg, nil, nil)
	require.NoError(t, err)

	require.Len(t, batches, 3)
	assert.Equal(t, []string{"slide1"}, batches[0].IDs())
	assert.Equal(t, []string{"slide1", "slide2"}, batches[1].IDs())
	assert.Equal(t, 0.5, batches[1].Entries[1].IntersectionRatio)
	assert.Equal(t, 2, batches[2].Step)
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{"unknown observe id", "observe: [missing]", "observe"},
		{"unknown secondary area", "observer: {secondary_scroll_area: missing}", "secondary scroll area"},
		{"unknown trigger target", "observer: {trigger: {target: missing, event: x}}", "trigger"},
		{"unknown scroll target", "script: [{scroll: {target: missing}}]", "script[0] scroll missing"},
		{"scroll on a static element", "script: [{scroll: {target: hero, x: 10}}]", "script[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, cfg := setup(t, tt.yaml)
			_, err := Run(context.Background(), doc, cfg, nil, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	doc, cfg := setup(t, `
observe: [hero]
script:
  - scroll: {y: 100}
`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batches, err := Run(ctx, doc, cfg, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, batches, 1)
}

func TestRunReleasesSubscriptions(t *testing.T) {
	doc, cfg := setup(t, `
observer:
  secondary_scroll_area: carousel
observe: [hero]
`)
	_, err := Run(context.Background(), doc, cfg, nil, nil)
	require.NoError(t, err)

	carousel, err := doc.Lookup("carousel")
	require.NoError(t, err)
	assert.False(t, doc.Window().HasListeners("resize"))
	assert.False(t, doc.Events().HasListeners("scroll"))
	assert.False(t, carousel.Events().HasListeners("scroll"))
}
