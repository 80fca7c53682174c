package matchmaking

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/models"
	"go.uber.org/zap"
)

func TestConnectSendsWelcomeAndCounts(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	a, recA := connect(e)
	_, recB := connect(e)

	welcome := recA.ofType(models.MessageTypeWelcome)
	if len(welcome) != 1 || welcome[0].(*models.Welcome).ID != a {
		t.Fatalf("A welcome = %v", welcome)
	}

	updates := recA.ofType(models.MessageTypeUpdateUsers)
	last := updates[len(updates)-1].(*models.UpdateUsers)
	if last.Total != 2 || last.Available != 0 {
		t.Fatalf("last update = %+v, want total=2 available=0", last)
	}
	if len(recB.ofType(models.MessageTypeUpdateUsers)) != 1 {
		t.Fatal("B should receive one update after its own connect")
	}
}

func TestTwoReadyClientsArePaired(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	a, recA := connect(e)
	b, recB := connect(e)

	e.MarkReady(a, "alice")
	if len(recA.starts()) != 0 {
		t.Fatal("a lone ready client must not be paired")
	}
	e.MarkReady(b, "bob")
	checkInvariants(t, e)

	startsA, startsB := recA.starts(), recB.starts()
	if len(startsA) != 1 || len(startsB) != 1 {
		t.Fatalf("got %d and %d start messages, want one each", len(startsA), len(startsB))
	}
	if startsA[0].Initiator == startsB[0].Initiator {
		t.Fatal("exactly one side must be the initiator")
	}
	if !startsB[0].Initiator {
		t.Fatal("the client whose ready triggered the match should initiate")
	}
	if startsA[0].Target != b || startsB[0].Target != a {
		t.Fatalf("targets = %s, %s", startsA[0].Target, startsB[0].Target)
	}
	if startsA[0].TargetName != "bob" || startsB[0].TargetName != "alice" {
		t.Fatalf("target names = %q, %q", startsA[0].TargetName, startsB[0].TargetName)
	}
	if !e.pairs.Mutual(a, b) {
		t.Fatal("a and b should be paired")
	}
	if e.Counts().Available != 0 || e.Counts().Pairs != 1 {
		t.Fatalf("counts = %+v", e.Counts())
	}
}

func TestThirdReadyClientWaits(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	a, _ := connect(e)
	b, _ := connect(e)
	c, recC := connect(e)

	e.MarkReady(a, "")
	e.MarkReady(b, "")
	e.MarkReady(c, "")
	checkInvariants(t, e)

	if !e.pairs.Mutual(a, b) {
		t.Fatal("a and b should be paired")
	}
	if len(recC.starts()) != 0 || !e.queue.Contains(c) {
		t.Fatal("c should remain queued alone")
	}

	d, _ := connect(e)
	e.MarkReady(d, "")
	if !e.pairs.Mutual(c, d) {
		t.Fatal("a fourth client should pair with c")
	}
}

func TestAnonymousNameAndSanitizing(t *testing.T) {
	e, _ := newTestEngine(t, Options{MaxNameLength: 5})
	a, recA := connect(e)
	b, recB := connect(e)

	e.MarkReady(a, "   ")
	e.MarkReady(b, "  bartholomew ")

	if got := recB.starts()[0].TargetName; got != DefaultAnonymousName {
		t.Fatalf("anonymous target name = %q", got)
	}
	if got := recA.starts()[0].TargetName; got != "barth" {
		t.Fatalf("trimmed target name = %q", got)
	}
}

func TestDisplayNameIsSetOnce(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	a, _ := connect(e)

	e.MarkReady(a, "first")
	e.MarkReady(a, "second")

	if got := e.registry.Lookup(a).DisplayName; got != "first" {
		t.Fatalf("DisplayName = %q, want first", got)
	}
}

func TestDisconnectReleasesPartner(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	a, _ := connect(e)
	b, recB := connect(e)
	e.MarkReady(a, "")
	e.MarkReady(b, "")

	e.Disconnect(a)
	checkInvariants(t, e)

	if len(recB.ofType(models.MessageTypePartnerDisconnected)) != 1 {
		t.Fatal("b should be told its partner left")
	}
	if e.pairs.Has(b) {
		t.Fatal("b's pairing entry should be removed")
	}
	if !e.registry.Lookup(b).Available || !e.queue.Contains(b) {
		t.Fatal("b should be available again")
	}
	if e.registry.Lookup(a) != nil {
		t.Fatal("a should be unregistered")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	a, _ := connect(e)
	_, recB := connect(e)

	e.Disconnect(a)
	recB.reset()
	e.Disconnect(a)
	e.Disconnect("never-connected")

	if len(recB.msgs) != 0 {
		t.Fatalf("repeated disconnect produced messages: %v", recB.msgs)
	}
	if e.Counts().Total != 1 {
		t.Fatalf("Total = %d, want 1", e.Counts().Total)
	}
}

func TestDeferredRepairAfterDisconnect(t *testing.T) {
	e, sched := newTestEngine(t, Options{RepairDelay: DefaultRepairDelay})
	a, _ := connect(e)
	b, recB := connect(e)
	c, recC := connect(e)
	e.MarkReady(a, "")
	e.MarkReady(b, "")
	e.MarkReady(c, "")

	e.Disconnect(a)
	checkInvariants(t, e)

	if len(recB.starts()) != 1 {
		t.Fatal("b must not be re-paired before the delay elapses")
	}
	if e.PendingRetries() != 1 || sched.live() != 1 {
		t.Fatalf("pending retries = %d, scheduled = %d", e.PendingRetries(), sched.live())
	}

	sched.fireAll()
	checkInvariants(t, e)

	if !e.pairs.Mutual(b, c) {
		t.Fatal("b should be paired with c after the retry fires")
	}
	starts := recB.starts()
	if !starts[len(starts)-1].Initiator {
		t.Fatal("the retried client should initiate")
	}
	if len(recC.starts()) != 1 {
		t.Fatal("c should receive exactly one start")
	}
}

func TestDeferredRepairIsNoopAfterDisconnect(t *testing.T) {
	e, sched := newTestEngine(t, Options{RepairDelay: DefaultRepairDelay})
	a, _ := connect(e)
	b, _ := connect(e)
	c, recC := connect(e)
	e.MarkReady(a, "")
	e.MarkReady(b, "")
	e.MarkReady(c, "")

	e.Disconnect(a)
	e.Disconnect(b)
	if e.PendingRetries() != 0 {
		t.Fatal("disconnect should cancel the pending retry")
	}

	sched.fireAll()
	checkInvariants(t, e)
	if len(recC.starts()) != 0 {
		t.Fatal("c must not be paired with a departed client")
	}
}

func TestStaleRetryIsIgnored(t *testing.T) {
	e, sched := newTestEngine(t, Options{RepairDelay: DefaultRepairDelay})
	a, _ := connect(e)
	b, _ := connect(e)
	e.MarkReady(a, "")
	e.MarkReady(b, "")
	e.Disconnect(a)

	// Fire a retry whose sequence was superseded.
	stale := sched.tasks[0]
	c, _ := connect(e)
	e.MarkReady(c, "")
	if !e.pairs.Mutual(c, b) {
		t.Fatal("c should pick up b while b waits for its retry")
	}
	stale.fn()
	checkInvariants(t, e)
	if !e.pairs.Mutual(c, b) {
		t.Fatal("a stale retry must not disturb the new pairing")
	}
}

func TestImmediateRepairWithoutDelay(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	a, _ := connect(e)
	b, _ := connect(e)
	c, _ := connect(e)
	e.MarkReady(a, "")
	e.MarkReady(b, "")
	e.MarkReady(c, "")

	e.Disconnect(a)

	if !e.pairs.Mutual(b, c) {
		t.Fatal("b should be re-paired inline when no delay is configured")
	}
}

func TestNextAvoidsRepeatPartner(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			e, _ := newTestEngine(t, Options{Rand: rand.New(rand.NewSource(seed))})
			a, recA := connect(e)
			b, recB := connect(e)
			e.MarkReady(a, "")
			e.MarkReady(b, "")
			c, _ := connect(e)
			e.MarkReady(c, "")

			e.RequestNext(a)
			checkInvariants(t, e)

			if e.pairs.Mutual(a, b) {
				t.Fatal("a and b must not be re-paired while c is available")
			}
			if !e.pairs.Mutual(a, c) {
				t.Fatal("a should pair with c")
			}
			if !e.queue.Contains(b) {
				t.Fatal("b should be seeking again")
			}
			if len(recB.ofType(models.MessageTypePartnerDisconnected)) != 1 {
				t.Fatal("b should be told its partner left")
			}
			if len(recA.ofType(models.MessageTypePartnerDisconnected)) != 0 {
				t.Fatal("the requester is not notified of its own next")
			}
		})
	}
}

func TestNextFallsBackToRepeatPartner(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	a, _ := connect(e)
	b, recB := connect(e)
	e.MarkReady(a, "")
	e.MarkReady(b, "")

	e.RequestNext(a)
	checkInvariants(t, e)

	if !e.pairs.Mutual(a, b) {
		t.Fatal("with no alternative the previous partners pair again")
	}
	if len(recB.starts()) != 2 {
		t.Fatalf("b got %d starts, want 2", len(recB.starts()))
	}
}

func TestNextWhileUnpairedActsAsReady(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	a, _ := connect(e)
	b, _ := connect(e)
	e.MarkReady(a, "")

	e.RequestNext(b)

	if !e.pairs.Mutual(a, b) {
		t.Fatal("next from an unpaired client should seek a partner")
	}
}

func TestAntiRepeatAmongManyCandidates(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		e, _ := newTestEngine(t, Options{Rand: rand.New(rand.NewSource(seed))})
		a, _ := connect(e)
		b, _ := connect(e)
		c, _ := connect(e)
		d, _ := connect(e)

		e.registry.Lookup(a).LastPartnerID = b
		e.registry.Lookup(b).LastPartnerID = a
		for _, id := range []string{b, c, d} {
			e.makeAvailable(e.registry.Lookup(id))
		}

		e.MarkReady(a, "")
		checkInvariants(t, e)

		partner, ok := e.pairs.Partner(a)
		if !ok {
			t.Fatalf("seed %d: a was not paired", seed)
		}
		if partner == b {
			t.Fatalf("seed %d: a re-paired with its last partner", seed)
		}
	}
}

func TestSelectionIsRandomAcrossCandidates(t *testing.T) {
	picked := make(map[string]bool)
	for seed := int64(1); seed <= 50; seed++ {
		e, _ := newTestEngine(t, Options{Rand: rand.New(rand.NewSource(seed))})
		ids := make([]string, 4)
		for i := range ids {
			ids[i], _ = connect(e)
		}
		for _, id := range ids[1:] {
			e.makeAvailable(e.registry.Lookup(id))
		}
		e.MarkReady(ids[0], "")
		partner, _ := e.pairs.Partner(ids[0])
		picked[partner] = true
	}
	if len(picked) < 2 {
		t.Fatalf("selection always picked %v", picked)
	}
}

func TestReadyWhilePairedDissolvesPairing(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	a, _ := connect(e)
	b, recB := connect(e)
	e.MarkReady(a, "")
	e.MarkReady(b, "")

	e.MarkReady(a, "")
	checkInvariants(t, e)

	if len(recB.ofType(models.MessageTypePartnerDisconnected)) != 1 {
		t.Fatal("b should be told the pairing is gone")
	}
	if !e.pairs.Mutual(a, b) {
		t.Fatal("with only two clients they fall back to pairing again")
	}
}

func TestOperationsOnUnknownClientsAreNoops(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	_, rec := connect(e)
	rec.reset()

	e.MarkReady("ghost", "x")
	e.RequestNext("ghost")
	if e.Relay("ghost", json.RawMessage(`{}`)) {
		t.Fatal("relay from an unknown client must be dropped")
	}

	if len(rec.msgs) != 0 {
		t.Fatalf("unexpected messages: %v", rec.msgs)
	}
	checkInvariants(t, e)
}

func TestBroadcastSkipsClosedConnections(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	_, recA := connect(e)
	_, recB := connect(e)
	_, recC := connect(e)
	recB.close()
	recA.reset()
	recC.reset()

	e.BroadcastCounts()

	if len(recA.ofType(models.MessageTypeUpdateUsers)) != 1 || len(recC.ofType(models.MessageTypeUpdateUsers)) != 1 {
		t.Fatal("open connections should still receive the update")
	}
}

func TestPairAbortsOnInvariantViolation(t *testing.T) {
	e, _ := newTestEngine(t, Options{Logger: zap.NewNop()})
	a, _ := connect(e)
	b, _ := connect(e)
	ca, cb := e.registry.Lookup(a), e.registry.Lookup(b)
	e.makeAvailable(ca)
	e.makeAvailable(cb)

	if err := e.pair(ca, ca); err == nil {
		t.Fatal("self pairing should fail")
	}
	e.pairs.partners[b] = "elsewhere"
	if err := e.pair(ca, cb); err == nil {
		t.Fatal("pairing an already paired client should fail")
	}
	if e.pairs.Has(a) {
		t.Fatal("a failed pairing must not leave entries behind")
	}
}

func TestRandomOperationsPreserveInvariants(t *testing.T) {
	e, sched := newTestEngine(t, Options{RepairDelay: DefaultRepairDelay, Logger: zap.NewNop()})
	r := rand.New(rand.NewSource(42))

	var live []string
	for step := 0; step < 2000; step++ {
		switch op := r.Intn(7); {
		case op == 0 || len(live) == 0:
			id, _ := connect(e)
			live = append(live, id)
		case op == 1:
			i := r.Intn(len(live))
			e.Disconnect(live[i])
			live = append(live[:i], live[i+1:]...)
		case op == 2 || op == 3:
			e.MarkReady(live[r.Intn(len(live))], "")
		case op == 4:
			e.RequestNext(live[r.Intn(len(live))])
		case op == 5:
			e.Relay(live[r.Intn(len(live))], json.RawMessage(`{"candidate":"x"}`))
		case op == 6:
			sched.fireAll()
		}
		checkInvariants(t, e)
	}

	if e.Counts().Total != len(live) {
		t.Fatalf("Total = %d, want %d", e.Counts().Total, len(live))
	}
}

func TestNamesAreRuneSafe(t *testing.T) {
	e, _ := newTestEngine(t, Options{MaxNameLength: 3})
	if got := e.sanitizeName("ñañaña"); got != "ñañ" {
		t.Fatalf("sanitizeName = %q", got)
	}
	if got := e.sanitizeName(strings.Repeat(" ", 4)); got != "" {
		t.Fatalf("sanitizeName = %q", got)
	}
}
