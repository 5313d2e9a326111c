package game

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/moonvale/werewolf/backend/internal/models"
)

// enterDay advances the day counter and routes to the sheriff election on the
// first morning of large tables, otherwise straight into the speech rotation.
func (e *Engine) enterDay(g *models.Game) {
	g.DayNo++
	if g.DayNo == 1 && len(g.Players) >= 12 && g.SheriffSeat == 0 {
		e.enterSheriffElection(g)
		return
	}
	e.enterDaySpeech(g)
}

// ============================================================================
// Sheriff election
// ============================================================================

func (e *Engine) enterSheriffElection(g *models.Game) {
	g.Phase = models.PhaseSheriffElection
	g.Election = models.BallotState{Stage: 1}
	g.ActiveSpeakerSeat = 0
	g.SpeakingQueue = nil
	g.PhaseEndsAt = e.nowMs() + sheriffElectionSeconds*1000
	e.appendLog(g, "警长竞选开始，上警请报名")
	e.appendEvent(g, models.EventPhaseChanged, models.EventPayload{Phase: g.Phase, DayNo: g.DayNo})
}

func (e *Engine) sheriffEnroll(g *models.Game, p *models.GamePlayer) error {
	if g.Phase != models.PhaseSheriffElection {
		return ErrPhaseForbidsAction
	}
	if !p.IsAlive {
		return ErrPlayerDead
	}
	if contains(g.Election.Candidates, p.Seat) {
		return ErrAlreadyActed
	}
	g.Election.Candidates = append(g.Election.Candidates, p.Seat)
	e.appendLog(g, fmt.Sprintf("%d号上警", p.Seat))
	e.appendEvent(g, models.EventActionSubmitted, models.EventPayload{Action: models.ActionSheriffEnroll, Seat: p.Seat})
	return nil
}

func (e *Engine) sheriffQuit(g *models.Game, p *models.GamePlayer) error {
	if g.Phase != models.PhaseSheriffElection {
		return ErrPhaseForbidsAction
	}
	for i, seat := range g.Election.Candidates {
		if seat == p.Seat {
			g.Election.Candidates = append(g.Election.Candidates[:i], g.Election.Candidates[i+1:]...)
			e.appendLog(g, fmt.Sprintf("%d号退水", p.Seat))
			e.appendEvent(g, models.EventActionSubmitted, models.EventPayload{Action: models.ActionSheriffQuit, Seat: p.Seat})
			return nil
		}
	}
	return ErrTargetInvalid
}

// closeSheriffElection runs at the 20s mark: no candidates skips the whole
// election, otherwise the candidates take the floor in enrollment order.
func (e *Engine) closeSheriffElection(g *models.Game) {
	if len(g.Election.Candidates) == 0 {
		e.appendLog(g, "无人上警，本局没有警长")
		e.enterDaySpeech(g)
		return
	}
	e.enterSheriffSpeech(g)
}

func (e *Engine) enterSheriffSpeech(g *models.Game) {
	g.Phase = models.PhaseSheriffSpeech
	g.SpeakingQueue = append([]int(nil), g.Election.Candidates...)
	e.setSpeaker(g, g.SpeakingQueue[0])
	e.appendEvent(g, models.EventPhaseChanged, models.EventPayload{Phase: g.Phase, DayNo: g.DayNo})
}

func (e *Engine) enterSheriffVote(g *models.Game) {
	g.Phase = models.PhaseSheriffVote
	g.Election.Votes = make(map[string]*int)
	g.ActiveSpeakerSeat = 0
	g.SpeakingQueue = nil
	g.PhaseEndsAt = e.nowMs() + sheriffVoteSeconds*1000
	e.appendLog(g, "请为警长投票")
	e.appendEvent(g, models.EventPhaseChanged, models.EventPayload{Phase: g.Phase, DayNo: g.DayNo})
}

// sheriffVote accepts one ballot from each living non-candidate. A nil target
// is an explicit abstention.
func (e *Engine) sheriffVote(g *models.Game, p *models.GamePlayer, target *int) error {
	if g.Phase != models.PhaseSheriffVote {
		return ErrPhaseForbidsAction
	}
	if !p.IsAlive {
		return ErrPlayerDead
	}
	if contains(g.Election.Candidates, p.Seat) {
		return ErrNotYourTurn
	}
	if _, ok := g.Election.Votes[p.UserID]; ok {
		return ErrAlreadyActed
	}
	if target != nil && !contains(g.Election.Candidates, *target) {
		return ErrTargetInvalid
	}

	g.Election.Votes[p.UserID] = target
	e.appendEvent(g, models.EventActionSubmitted, models.EventPayload{Action: models.ActionSheriffVote, Seat: p.Seat})

	if len(g.Election.Votes) >= e.sheriffElectorate(g) {
		e.resolveSheriffVote(g)
	}
	return nil
}

func (e *Engine) sheriffElectorate(g *models.Game) int {
	n := 0
	for _, p := range g.Players {
		if p.IsAlive && !contains(g.Election.Candidates, p.Seat) {
			n++
		}
	}
	return n
}

// resolveSheriffVote tallies by plurality. A first-round tie reruns speech
// and vote over the tied seats; a second tie leaves the game without a
// sheriff.
func (e *Engine) resolveSheriffVote(g *models.Game) {
	counts := make(map[int]int)
	for _, v := range g.Election.Votes {
		if v != nil {
			counts[*v]++
		}
	}
	winners, best := topSeats(counts)

	tally := make(map[string]float64, len(counts))
	for seat, n := range counts {
		tally[strconv.Itoa(seat)] = float64(n)
	}
	e.appendEvent(g, models.EventVoteResult, models.EventPayload{
		Tally: tally, Stage: g.Election.Stage, Reason: "sheriff",
	})

	switch {
	case best == 0:
		e.appendLog(g, "无人得票，本局没有警长")
		e.enterDaySpeech(g)
	case len(winners) == 1:
		g.SheriffSeat = winners[0]
		e.appendLog(g, fmt.Sprintf("%d号当选警长", winners[0]))
		e.appendEvent(g, models.EventSheriffElected, models.EventPayload{SheriffSeat: winners[0]})
		e.enterDaySpeech(g)
	case g.Election.Stage == 1:
		g.Election.Stage = 2
		g.Election.Candidates = winners
		e.appendLog(g, fmt.Sprintf("警上平票，%s重新发言", seatList(winners)))
		e.enterSheriffSpeech(g)
	default:
		e.appendLog(g, "警上再次平票，本局没有警长")
		e.enterDaySpeech(g)
	}
}

// ============================================================================
// Speech rotation
// ============================================================================

// enterDaySpeech builds the rotation over living seats. After a night with
// deaths the floor opens at the first living seat past the first victim,
// wrapping around the table.
func (e *Engine) enterDaySpeech(g *models.Game) {
	g.Phase = models.PhaseDaySpeech
	alive := g.AliveSeats()
	start := 0
	if len(g.LastNightDeaths) > 0 {
		first := g.LastNightDeaths[0]
		for i, seat := range alive {
			if seat > first {
				start = i
				break
			}
		}
	}
	queue := make([]int, 0, len(alive))
	for i := range alive {
		queue = append(queue, alive[(start+i)%len(alive)])
	}
	g.SpeakingQueue = queue
	e.setSpeaker(g, queue[0])
	e.appendEvent(g, models.EventPhaseChanged, models.EventPayload{Phase: g.Phase, DayNo: g.DayNo})
}

func (e *Engine) setSpeaker(g *models.Game, seat int) {
	g.ActiveSpeakerSeat = seat
	g.PhaseEndsAt = e.nowMs() + int64(g.Timers.DaySpeechSeconds)*1000
	e.appendLog(g, fmt.Sprintf("请%d号发言", seat))
	e.appendEvent(g, models.EventSpeakerChanged, models.EventPayload{Seat: seat, Phase: g.Phase})
}

// advanceSpeaker hands the floor to the next queued seat, or closes the
// speech phase after the last one.
func (e *Engine) advanceSpeaker(g *models.Game) {
	idx := -1
	for i, seat := range g.SpeakingQueue {
		if seat == g.ActiveSpeakerSeat {
			idx = i
			break
		}
	}
	if idx >= 0 && idx+1 < len(g.SpeakingQueue) {
		e.setSpeaker(g, g.SpeakingQueue[idx+1])
		return
	}
	if g.Phase == models.PhaseSheriffSpeech {
		e.enterSheriffVote(g)
		return
	}
	e.enterDayVote(g)
}

// nextSpeaker is the explicit "I'm done" action of the active speaker.
func (e *Engine) nextSpeaker(g *models.Game, p *models.GamePlayer) error {
	if g.Phase != models.PhaseDaySpeech && g.Phase != models.PhaseSheriffSpeech {
		return ErrPhaseForbidsAction
	}
	if g.ActiveSpeakerSeat != p.Seat {
		return ErrNotYourTurn
	}
	e.advanceSpeaker(g)
	return nil
}

// ============================================================================
// Day vote
// ============================================================================

func (e *Engine) enterDayVote(g *models.Game) {
	g.Phase = models.PhaseDayVote
	g.Day = models.BallotState{Stage: 1, Votes: make(map[string]*int)}
	g.ActiveSpeakerSeat = 0
	g.SpeakingQueue = nil
	g.PhaseEndsAt = e.nowMs() + int64(g.Timers.DayVoteSeconds)*1000
	e.appendLog(g, "请投票放逐一名玩家")
	e.appendEvent(g, models.EventPhaseChanged, models.EventPayload{Phase: g.Phase, DayNo: g.DayNo})
}

// dayVote accepts one ballot per living player per stage. A nil target is an
// abstention; stage 2 restricts targets to the runoff candidates.
func (e *Engine) dayVote(g *models.Game, p *models.GamePlayer, target *int) error {
	if g.Phase != models.PhaseDayVote {
		return ErrPhaseForbidsAction
	}
	if !p.IsAlive {
		return ErrPlayerDead
	}
	if _, ok := g.Day.Votes[p.UserID]; ok {
		return ErrAlreadyActed
	}
	if target != nil {
		t := g.PlayerBySeat(*target)
		if t == nil || !t.IsAlive {
			return ErrTargetInvalid
		}
		if g.Day.Stage == 2 && !contains(g.Day.Candidates, *target) {
			return ErrTargetInvalid
		}
	}

	g.Day.Votes[p.UserID] = target
	e.appendEvent(g, models.EventActionSubmitted, models.EventPayload{Action: models.ActionDayVote, Seat: p.Seat})

	if len(g.Day.Votes) >= len(g.AliveSeats()) {
		e.resolveDayVote(g)
	}
	return nil
}

// resolveDayVote tallies the weighted vote. The sheriff counts 1.5, tracked
// internally in half-points to stay in integers. One runoff at most; a
// second tie or an empty tally eliminates nobody.
func (e *Engine) resolveDayVote(g *models.Game) {
	halves := make(map[int]int)
	for uid, v := range g.Day.Votes {
		if v == nil {
			continue
		}
		voter := g.PlayerByUserID(uid)
		w := 2
		if voter != nil && voter.Seat == g.SheriffSeat {
			w = 3
		}
		halves[*v] += w
	}
	winners, best := topSeats(halves)

	tally := make(map[string]float64, len(halves))
	for seat, h := range halves {
		tally[strconv.Itoa(seat)] = float64(h) / 2
	}
	e.appendEvent(g, models.EventVoteResult, models.EventPayload{
		Tally: tally, Stage: g.Day.Stage, Reason: "day",
	})

	switch {
	case best == 0:
		e.appendLog(g, "无人得票，今天无人出局")
		e.startNight(g)
	case len(winners) == 1:
		e.eliminateByVote(g, winners[0])
	case g.Day.Stage == 1:
		g.Day.Stage = 2
		g.Day.Candidates = winners
		g.Day.Votes = make(map[string]*int)
		g.PhaseEndsAt = e.nowMs() + int64(g.Timers.DayVoteSeconds)*1000
		e.appendLog(g, fmt.Sprintf("平票，%s进入PK投票", seatList(winners)))
	default:
		e.appendLog(g, "再次平票，今天无人出局")
		e.startNight(g)
	}
}

func (e *Engine) eliminateByVote(g *models.Game, seat int) {
	g.PlayerBySeat(seat).IsAlive = false
	g.LastNightDeaths = nil
	e.appendLog(g, fmt.Sprintf("投票结果：%d号出局", seat))
	e.appendEvent(g, models.EventPlayerEliminated, models.EventPayload{Seat: seat, Reason: "vote"})

	if e.finalizeIfWinner(g) {
		return
	}
	if hunter := hunterAmong(g, []int{seat}); hunter != 0 {
		e.enterSettlement(g, hunter)
		return
	}
	e.startNight(g)
}

// ============================================================================
// Settlement (hunter)
// ============================================================================

func (e *Engine) enterSettlement(g *models.Game, hunterSeat int) {
	g.Phase = models.PhaseSettlement
	g.Settlement.PendingHunterSeat = hunterSeat
	g.ActiveRole = ""
	g.ActiveSpeakerSeat = 0
	g.SpeakingQueue = nil
	g.PhaseEndsAt = e.nowMs() + int64(g.Timers.SettlementSeconds)*1000
	e.appendLog(g, fmt.Sprintf("%d号是猎人，等待猎人开枪", hunterSeat))
	e.appendEvent(g, models.EventPhaseChanged, models.EventPayload{Phase: g.Phase, DayNo: g.DayNo})
}

// hunterShoot resolves the pending hunter. The hunter is already dead at this
// point, so no alive check; a nil target holsters the gun.
func (e *Engine) hunterShoot(g *models.Game, p *models.GamePlayer, target *int) error {
	if g.Phase != models.PhaseSettlement {
		return ErrPhaseForbidsAction
	}
	if g.Settlement.PendingHunterSeat != p.Seat {
		return ErrNotYourTurn
	}
	if target != nil {
		t := g.PlayerBySeat(*target)
		if t == nil || !t.IsAlive {
			return ErrTargetInvalid
		}
	}
	e.resolveSettlement(g, target)
	return nil
}

func (e *Engine) resolveSettlement(g *models.Game, target *int) {
	hunterSeat := g.Settlement.PendingHunterSeat
	g.Settlement.PendingHunterSeat = 0

	if target != nil {
		g.PlayerBySeat(*target).IsAlive = false
		e.appendLog(g, fmt.Sprintf("猎人%d号开枪带走了%d号", hunterSeat, *target))
		e.appendEvent(g, models.EventActionSubmitted, models.EventPayload{
			Action: models.ActionHunterShoot, Seat: hunterSeat, TargetSeat: *target,
		})
		e.appendEvent(g, models.EventPlayerEliminated, models.EventPayload{Seat: *target, Reason: "hunter"})
	} else {
		e.appendLog(g, fmt.Sprintf("猎人%d号放弃开枪", hunterSeat))
		e.appendEvent(g, models.EventActionSubmitted, models.EventPayload{
			Action: models.ActionHunterShoot, Seat: hunterSeat,
		})
	}

	if e.finalizeIfWinner(g) {
		return
	}
	if g.DayNo == 0 {
		e.enterDay(g)
		return
	}
	e.startNight(g)
}

// topSeats returns the seats holding the highest count, in ascending seat
// order, plus the count itself.
func topSeats(counts map[int]int) ([]int, int) {
	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}
	if best == 0 {
		return nil, 0
	}
	var winners []int
	for seat, n := range counts {
		if n == best {
			winners = append(winners, seat)
		}
	}
	sort.Ints(winners)
	return winners, best
}
