package publish

import (
	"errors"
	"testing"

	"github.com/xela07ax/threatwatch/internal/domain"
	"github.com/xela07ax/threatwatch/internal/engine"
	"github.com/xela07ax/threatwatch/internal/timeline"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		payload string
		want    Command
		wantErr bool
	}{
		{payload: "refresh", want: Command{Kind: CommandRefresh}},
		{payload: " range:6 ", want: Command{Kind: CommandRange, Hours: 6}},
		{payload: "range:720", want: Command{Kind: CommandRange, Hours: 720}},
		{payload: "range:721", wantErr: true},
		{payload: "range:1099511627776", wantErr: true},
		{payload: "range:0", wantErr: true},
		{payload: "range:abc", wantErr: true},
		{payload: "range", wantErr: true},
		{payload: "reboot", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := ParseCommand(tt.payload, 720)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

type fakeController struct {
	ranges    []int
	refreshes int
}

func (c *fakeController) RequestRange(hours int) error {
	c.ranges = append(c.ranges, hours)
	return nil
}

func (c *fakeController) RequestRefresh() {
	c.refreshes++
}

func TestParseCommand_RangeErrorIsInvalidRange(t *testing.T) {
	_, err := ParseCommand("range:100000", 720)
	if !errors.Is(err, engine.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}

func TestDispatch(t *testing.T) {
	ctl := &fakeController{}

	if err := Dispatch(ctl, Command{Kind: CommandRange, Hours: 12}); err != nil {
		t.Fatalf("range: %v", err)
	}
	if err := Dispatch(ctl, Command{Kind: CommandRefresh}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := Dispatch(ctl, Command{Kind: "noop"}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}

	if len(ctl.ranges) != 1 || ctl.ranges[0] != 12 || ctl.refreshes != 1 {
		t.Errorf("unexpected controller state %+v", ctl)
	}
}

type countingSink struct {
	snapshots, alerts, conn, buckets, notices int
}

func (s *countingSink) PublishSnapshot(domain.Snapshot)                          { s.snapshots++ }
func (s *countingSink) PublishAlert(domain.Alert)                                { s.alerts++ }
func (s *countingSink) PublishConnectivity(domain.ConnectivityStatus)            { s.conn++ }
func (s *countingSink) PublishBuckets(timeline.Timeline, []timeline.TrendBucket) { s.buckets++ }
func (s *countingSink) PublishNotice(domain.Notice)                              { s.notices++ }

func TestFanout(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	f := Fanout{a, b}

	f.PublishSnapshot(domain.Snapshot{})
	f.PublishAlert(domain.Alert{})
	f.PublishConnectivity(domain.ConnectivityStatus{})
	f.PublishBuckets(nil, nil)
	f.PublishNotice(domain.Notice{})

	for _, s := range []*countingSink{a, b} {
		if *s != (countingSink{1, 1, 1, 1, 1}) {
			t.Errorf("expected every sink to receive each event once, got %+v", *s)
		}
	}
}
