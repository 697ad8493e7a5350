package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Frame addresses one frame of a page, main or nested. Evaluation in nested
// frames goes through an isolated world so reader scripts cannot interfere.
type Frame struct {
	pg  *Page
	ID  cdp.FrameID
	URL string

	worldID runtime.ExecutionContextID
}

// Frames walks the frame tree, main frame first.
func (p *Page) Frames(ctx context.Context) ([]*Frame, error) {
	runCtx, cancel := p.deadline(ctx)
	defer cancel()

	exec := cdp.WithExecutor(runCtx, chromedp.FromContext(p.ctx).Target)

	tree, err := page.GetFrameTree().Do(exec)
	if err != nil {
		return nil, fmt.Errorf("frame tree: %w", err)
	}

	var out []*Frame
	var walk func(t *page.FrameTree)
	walk = func(t *page.FrameTree) {
		if t == nil || t.Frame == nil {
			return
		}
		out = append(out, &Frame{pg: p, ID: t.Frame.ID, URL: t.Frame.URL})
		for _, child := range t.ChildFrames {
			walk(child)
		}
	}
	walk(tree)

	return out, nil
}

func (fr *Frame) world(exec context.Context) (runtime.ExecutionContextID, error) {
	if fr.worldID != 0 {
		return fr.worldID, nil
	}

	id, err := page.CreateIsolatedWorld(fr.ID).
		WithWorldName("lectord").
		WithGrantUniveralAccess(true).
		Do(exec)
	if err != nil {
		return 0, fmt.Errorf("isolated world for %s: %w", fr.ID, err)
	}
	fr.worldID = id

	return id, nil
}

// Eval runs an expression in the frame's isolated world and unmarshals the
// result into out. Pass nil to discard the value.
func (fr *Frame) Eval(ctx context.Context, js string, out interface{}) error {
	runCtx, cancel := fr.pg.deadline(ctx)
	defer cancel()

	exec := cdp.WithExecutor(runCtx, chromedp.FromContext(fr.pg.ctx).Target)

	worldID, err := fr.world(exec)
	if err != nil {
		return err
	}

	obj, exc, err := runtime.Evaluate(js).
		WithContextID(worldID).
		WithReturnByValue(true).
		WithAwaitPromise(true).
		Do(exec)
	if err != nil {
		// stale world after a frame swap, retry once with a fresh one
		fr.worldID = 0
		if worldID, err = fr.world(exec); err != nil {
			return err
		}
		obj, exc, err = runtime.Evaluate(js).
			WithContextID(worldID).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(exec)
		if err != nil {
			return err
		}
	}
	if exc != nil {
		return fmt.Errorf("frame eval: %s", exc.Text)
	}
	if out == nil || obj == nil || obj.Value == nil {
		return nil
	}

	return json.Unmarshal(obj.Value, out)
}
