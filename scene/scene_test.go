package scene

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisuehlinger/viewwatch/events"
	"github.com/chrisuehlinger/viewwatch/geometry"
	"github.com/chrisuehlinger/viewwatch/observer"
)

const page = `<!DOCTYPE html>
<html style="width: 1000px; height: 800px">
<head><style>div { position: absolute }</style></head>
<body>
  <div id="hero" style="left: 100px; top: 100px; width: 50px; height: 50px"></div>
  <div id="corner" style="left: 990px; top: 790px; width: 100px; height: 100px"></div>
  <div id="footer" style="left: 0; top: 2000px; width: 1000px; height: 10px"></div>
  <div id="carousel" style="left: 0px; top: 300px; width: 300px; height: 100px; overflow-x: hidden">
    <div id="slide1" style="left: 0px; top: 300px; width: 300px; height: 100px"></div>
    <div id="slide2" style="left: 300px; top: 300px; width: 300px; height: 100px"></div>
  </div>
</body>
</html>`

func loadPage(t *testing.T) *Document {
	t.Helper()
	d, err := ParseString(page, geometry.NewSize(1000, 800))
	require.NoError(t, err)
	return d
}

func TestParseBuildsPositionedElements(t *testing.T) {
	d := loadPage(t)

	hero, ok := d.Element("hero")
	require.True(t, ok)
	assert.Equal(t, geometry.NewRect(100, 100, 50, 50), hero.Box)
	assert.Equal(t, "div", hero.Tag)
	assert.Equal(t, geometry.NewSize(1000, 800), d.DocumentSize())

	carousel, ok := d.Element("carousel")
	require.True(t, ok)
	assert.True(t, carousel.Scrollable)
	assert.Len(t, carousel.Children(), 2)

	var ids []string
	for _, e := range d.Elements() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"hero", "corner", "footer", "carousel", "slide1", "slide2"}, ids)
	assert.Equal(t, geometry.NewSize(1090, 2010), d.ContentSize())
}

func TestParseRejectsBadLengths(t *testing.T) {
	_, err := ParseString(`<div id="x" style="left: 10em"></div>`, geometry.NewSize(100, 100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "left")

	_, err = ParseString(`<div id="x"></div><p id="x"></p>`, geometry.NewSize(100, 100))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o644))

	d, err := LoadFile(path, geometry.NewSize(800, 600))
	require.NoError(t, err)
	assert.Equal(t, geometry.NewSize(800, 600), d.DisplaySize())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.html"), geometry.NewSize(1, 1))
	assert.Error(t, err)
}

func TestBoundingClientRectFollowsScroll(t *testing.T) {
	d := loadPage(t)
	hero, _ := d.Element("hero")
	slide2, _ := d.Element("slide2")

	require.NoError(t, d.ScrollTo(0, 60))
	rect, err := d.BoundingClientRect(hero)
	require.NoError(t, err)
	assert.Equal(t, geometry.NewRect(100, 40, 50, 50), rect)

	require.NoError(t, d.ScrollElementTo("carousel", 300, 0))
	rect, err = slide2.BoundingClientRect()
	require.NoError(t, err)
	assert.Equal(t, geometry.NewRect(0, 240, 300, 100), rect)

	carousel, _ := d.Element("carousel")
	rect, err = carousel.BoundingClientRect()
	require.NoError(t, err)
	assert.Equal(t, geometry.NewRect(0, 240, 300, 100), rect, "a container does not move with its own scroll")
}

func TestScrollIsClamped(t *testing.T) {
	d := loadPage(t)

	require.NoError(t, d.ScrollTo(-50, 99999))
	x, y := d.Scroll()
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 2010.0-800, y)

	require.NoError(t, d.ScrollElementTo("carousel", 1000, 0))
	carousel, _ := d.Element("carousel")
	cx, _ := carousel.Scroll()
	assert.Equal(t, 300.0, cx)

	err := d.ScrollElementTo("hero", 10, 0)
	assert.ErrorIs(t, err, ErrNotScrollable)
	assert.ErrorIs(t, d.ScrollElementTo("nope", 0, 0), ErrNotFound)
}

func TestEventsAreDispatched(t *testing.T) {
	d := loadPage(t)
	var got []string
	record := func(name string) func() error {
		return func() error {
			got = append(got, name)
			return nil
		}
	}
	carousel, _ := d.Element("carousel")

	d.Events().Subscribe("scroll", record("page scroll"))
	d.Window().Subscribe("resize", record("resize"))
	carousel.Subscribe("scroll", record("carousel scroll"))
	carousel.Subscribe("change", record("carousel change"))

	require.NoError(t, d.ScrollTo(0, 10))
	require.NoError(t, d.Resize(640, 480))
	require.NoError(t, d.ScrollElementTo("carousel", 10, 0))
	require.NoError(t, d.Emit("carousel", "change"))
	require.NoError(t, d.Emit("window", "resize"))

	assert.Equal(t, []string{"page scroll", "resize", "carousel scroll", "carousel change", "resize"}, got)
	assert.Equal(t, geometry.NewSize(640, 480), d.DisplaySize())
}

func TestRemoveDetachesSubtree(t *testing.T) {
	d := loadPage(t)
	slide1, _ := d.Element("slide1")

	require.NoError(t, d.Remove("carousel"))
	assert.False(t, slide1.IsConnected())
	_, err := d.BoundingClientRect(slide1)
	assert.ErrorIs(t, err, ErrDetached)

	_, ok := d.Element("carousel")
	assert.False(t, ok)
	assert.ErrorIs(t, d.Remove("carousel"), ErrNotFound)
}

func TestBoundingClientRectRejectsForeignHandles(t *testing.T) {
	d := loadPage(t)
	other := loadPage(t)
	hero, _ := other.Element("hero")

	_, err := d.BoundingClientRect(hero)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = d.BoundingClientRect("hero")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestObserverOverDocument(t *testing.T) {
	d := loadPage(t)
	timers := events.NewTimerQueue()
	carousel, _ := d.Element("carousel")

	var batches [][]string
	obs, err := observer.New(func(entries []observer.Entry, o *observer.Observer) error {
		var ids []string
		for _, e := range entries {
			ids = append(ids, e.Target.(*Element).ID)
		}
		batches = append(batches, ids)
		return nil
	}, observer.Options{
		Viewport:            d,
		Rects:               d,
		Root:                d.Events(),
		Window:              d.Window(),
		SecondaryScrollArea: carousel,
		Timer:               timers,
	})
	require.NoError(t, err)

	for _, id := range []string{"slide1", "slide2"} {
		e, _ := d.Element(id)
		require.NoError(t, obs.Observe(e))
	}
	assert.Equal(t, [][]string{{"slide1"}}, batches)

	batches = nil
	require.NoError(t, d.ScrollElementTo("carousel", 150, 0))
	assert.Equal(t, [][]string{{"slide1", "slide2"}}, batches)

	batches = nil
	timers.Advance(5 * time.Millisecond)
	require.NoError(t, d.ScrollElementTo("carousel", 300, 0))
	assert.Empty(t, batches, "still inside the cooldown")

	timers.Advance(5 * time.Millisecond)
	require.NoError(t, d.ScrollTo(0, 0))
	assert.Equal(t, [][]string{{"slide2"}}, batches)

	batches = nil
	timers.Advance(10 * time.Millisecond)
	require.NoError(t, d.ScrollTo(0, 400))
	assert.Empty(t, batches, "the carousel has scrolled off the page")
}
