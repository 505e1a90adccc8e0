package watcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/triage-ai/netwarden/internal/extract"
	"github.com/triage-ai/netwarden/internal/uitree"
	"go.uber.org/zap"
)

// fakeProvider serves a scripted sequence of window sets, one per call.
type fakeProvider struct {
	sets [][]uitree.Window
	call int
}

func (p *fakeProvider) Windows(_ context.Context, _ uitree.AppMatch) ([]uitree.Window, error) {
	if p.call >= len(p.sets) {
		return nil, nil
	}
	set := p.sets[p.call]
	p.call++
	return set, nil
}

func alertWindow(fragments ...string) uitree.Window {
	win := uitree.Window{Title: "Alert: new outgoing connection"}
	for _, f := range fragments {
		win.Root.Children = append(win.Root.Children, uitree.Element{Value: f})
	}
	return win
}

func newTestWatcher(p uitree.WindowProvider) *Watcher {
	return New(p, extract.New(zap.NewNop()), Config{
		App:         uitree.AppMatch{BundleID: "com.example.firewall"},
		TitleMarker: "Alert",
	}, zap.NewNop())
}

func TestPoll_EmitsConclusiveAlert(t *testing.T) {
	p := &fakeProvider{sets: [][]uitree.Window{
		{alertWindow("ip address:", "93.184.216.34", "port/protocol:", "443 (TCP)")},
	}}
	w := newTestWatcher(p)

	w.poll(context.Background())

	select {
	case a := <-w.Alerts():
		if a.IPAddress != "93.184.216.34" {
			t.Errorf("IPAddress = %q", a.IPAddress)
		}
	default:
		t.Fatal("expected an alert on the channel")
	}
}

func TestPoll_InconclusiveDraftNotEmitted(t *testing.T) {
	p := &fakeProvider{sets: [][]uitree.Window{
		{alertWindow("Allow", "Block", "some text")},
	}}
	w := newTestWatcher(p)

	w.poll(context.Background())

	select {
	case a := <-w.Alerts():
		t.Fatalf("inconclusive draft emitted: %+v", a)
	default:
	}
}

func TestPoll_SameIPEmittedOnce(t *testing.T) {
	win := alertWindow("ip address:", "93.184.216.34")
	p := &fakeProvider{sets: [][]uitree.Window{{win}, {win}, {win}}}
	w := newTestWatcher(p)

	for i := 0; i < 3; i++ {
		w.poll(context.Background())
	}

	count := 0
	for {
		select {
		case <-w.Alerts():
			count++
			continue
		default:
		}
		break
	}
	if count != 1 {
		t.Errorf("got %d alerts for an unchanged dialog, want 1", count)
	}
}

func TestPoll_NewIPReplacesMarker(t *testing.T) {
	p := &fakeProvider{sets: [][]uitree.Window{
		{alertWindow("ip address:", "93.184.216.34")},
		{alertWindow("ip address:", "151.101.1.69")},
		{alertWindow("ip address:", "151.101.1.69")},
	}}
	w := newTestWatcher(p)

	for i := 0; i < 3; i++ {
		w.poll(context.Background())
	}

	var ips []string
	for {
		select {
		case a := <-w.Alerts():
			ips = append(ips, a.IPAddress)
			continue
		default:
		}
		break
	}
	if len(ips) != 2 || ips[0] != "93.184.216.34" || ips[1] != "151.101.1.69" {
		t.Errorf("emitted IPs = %v", ips)
	}
}

func TestPoll_DroppedAlertRetriedNextTick(t *testing.T) {
	var sets [][]uitree.Window
	for i := 1; i <= alertBufferSize; i++ {
		sets = append(sets, []uitree.Window{
			alertWindow("ip address:", fmt.Sprintf("10.0.0.%d", i)),
		})
	}
	// Buffer is now full: this dialog's alert is dropped on the first poll
	// and must still be emitted once a consumer frees a slot.
	win := alertWindow("ip address:", "9.9.9.9")
	sets = append(sets, []uitree.Window{win}, []uitree.Window{win})

	w := newTestWatcher(&fakeProvider{sets: sets})

	for i := 0; i < alertBufferSize+1; i++ {
		w.poll(context.Background())
	}
	for i := 0; i < alertBufferSize; i++ {
		<-w.Alerts()
	}

	w.poll(context.Background())

	select {
	case a := <-w.Alerts():
		if a.IPAddress != "9.9.9.9" {
			t.Errorf("IPAddress = %q, want 9.9.9.9", a.IPAddress)
		}
	default:
		t.Fatal("alert dropped on a full buffer was deduplicated instead of retried")
	}
}

func TestPoll_NoAlertWindow(t *testing.T) {
	p := &fakeProvider{sets: [][]uitree.Window{
		{{Title: "Preferences"}, {Title: "Rules"}},
	}}
	w := newTestWatcher(p)

	w.poll(context.Background())

	select {
	case <-w.Alerts():
		t.Fatal("no alert window present, nothing should be emitted")
	default:
	}
}
