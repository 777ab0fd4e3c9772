package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	mcp2515 "github.com/knieriem/mcp2515/v2"
	"github.com/knieriem/mcp2515/v2/spiproto"
)

type stubDevice struct {
	sendErr error
	recvErr error
}

func (s stubDevice) Send(mcp2515.Frame) error { return s.sendErr }
func (s stubDevice) Receive() (mcp2515.Frame, error) {
	return mcp2515.Frame{}, s.recvErr
}

func TestInstrumentCounts(t *testing.T) {
	before := Snap()
	busyBefore := testutil.ToFloat64(TxBusy)
	dlcBefore := testutil.ToFloat64(DroppedFrames.WithLabelValues(ReasonInvalidDLC))
	spiBefore := testutil.ToFloat64(Errors.WithLabelValues(KindSPI))

	var f mcp2515.Frame
	_ = Instrument(stubDevice{}).Send(f)
	_ = Instrument(stubDevice{sendErr: mcp2515.ErrTxBusy}).Send(f)
	_, _ = Instrument(stubDevice{}).Receive()
	_, _ = Instrument(stubDevice{recvErr: mcp2515.ErrNoMessage}).Receive()
	_, _ = Instrument(stubDevice{recvErr: fmt.Errorf("%w: dlc 12", mcp2515.ErrInvalidDLC)}).Receive()
	_, _ = Instrument(stubDevice{recvErr: &spiproto.Error{Op: "read", Err: errors.New("x")}}).Receive()

	after := Snap()
	if after.Tx-before.Tx != 1 || after.Rx-before.Rx != 1 {
		t.Fatalf("tx/rx: %+v -> %+v", before, after)
	}
	if after.TxBusy-before.TxBusy != 1 || after.Dropped-before.Dropped != 1 || after.Errors-before.Errors != 1 {
		t.Fatalf("errors: %+v -> %+v", before, after)
	}
	if got := testutil.ToFloat64(TxBusy) - busyBefore; got != 1 {
		t.Fatalf("tx busy counter +%v", got)
	}
	if got := testutil.ToFloat64(DroppedFrames.WithLabelValues(ReasonInvalidDLC)) - dlcBefore; got != 1 {
		t.Fatalf("invalid dlc counter +%v", got)
	}
	if got := testutil.ToFloat64(Errors.WithLabelValues(KindSPI)) - spiBefore; got != 1 {
		t.Fatalf("spi counter +%v", got)
	}
}

func TestObserveErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{&mcp2515.TxError{Buffer: 2, Ctrl: spiproto.ABTF}, KindTxFailed},
		{fmt.Errorf("%w: normal", mcp2515.ErrNewModeTimeout), KindModeTimeout},
		{errors.New("other"), KindOther},
	}
	for _, tc := range tests {
		before := testutil.ToFloat64(Errors.WithLabelValues(tc.kind))
		ObserveError(tc.err)
		if got := testutil.ToFloat64(Errors.WithLabelValues(tc.kind)) - before; got != 1 {
			t.Fatalf("%v: %s +%v", tc.err, tc.kind, got)
		}
	}
}

func TestSetErrorCounters(t *testing.T) {
	SetErrorCounters(12, 200)
	if testutil.ToFloat64(TxErrorCounter) != 12 || testutil.ToFloat64(RxErrorCounter) != 200 {
		t.Fatal("gauges not updated")
	}
}

func TestReadiness(t *testing.T) {
	t.Cleanup(func() { SetReadinessFunc(nil) })
	if !IsReady() {
		t.Fatal("ready by default")
	}
	SetReadinessFunc(func() bool { return false })
	if IsReady() {
		t.Fatal("expected not ready")
	}

	srv := StartHTTP("127.0.0.1:0")
	defer srv.Close()
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusServiceUnavailable || string(body) != "not ready\n" {
		t.Fatalf("got %d %q", rec.Code, body)
	}
}
