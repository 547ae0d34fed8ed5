// Package inference implements the per-datapoint rj-MCMC state machine
// (spec.md §4.H). The state enum and step-by-step transition method are
// grounded on the teacher's pkg/core/orchestrator.Orchestrator (TestState
// + transitionState); burn-in criterion bookkeeping is grounded on
// pkg/monitoring/detector/failure_detector.go's evaluate-and-remember
// CriterionResult pattern; the window/acceptance-rate collector is
// grounded on pkg/monitoring/collector/collector.go, with its background
// goroutine stripped since the chain is single-threaded (spec.md §5).
package inference

import (
	"context"
	"math"
	"math/rand"

	"github.com/geoinv/aem-rjmcmc/pkg/datapoint"
	"github.com/geoinv/aem-rjmcmc/pkg/distribution"
	"github.com/geoinv/aem-rjmcmc/pkg/errs"
	"github.com/geoinv/aem-rjmcmc/pkg/forward"
	"github.com/geoinv/aem-rjmcmc/pkg/logging"
	"github.com/geoinv/aem-rjmcmc/pkg/mesh"
	"github.com/geoinv/aem-rjmcmc/pkg/model1d"
)

// State names one step of the per-datapoint sampler loop.
type State int

const (
	StateInitialise State = iota
	StatePropose
	StateEvaluate
	StateAcceptReject
	StateRecord
	StateCheckBurnIn
	StateTerminate
)

func (s State) String() string {
	switch s {
	case StateInitialise:
		return "INITIALISE"
	case StatePropose:
		return "PROPOSE"
	case StateEvaluate:
		return "EVALUATE"
	case StateAcceptReject:
		return "ACCEPT_REJECT"
	case StateRecord:
		return "RECORD"
	case StateCheckBurnIn:
		return "CHECK_BURN_IN"
	case StateTerminate:
		return "TERMINATE"
	default:
		return "UNKNOWN"
	}
}

// BurnInConfig controls the two burn-in tests of spec.md §4.H. All four
// fields are configurable rather than hard-coded (spec.md §9 open
// question); a zero field takes the default noted beside it.
type BurnInConfig struct {
	MinIterations   int     // default 10000
	L2Threshold     float64 // default 1.0
	ToleranceWindow int     // iterations the misfit must sit near target; default 1000
	RelTolerance    float64 // "near target" band around multiplier*tau; default 0.05
}

func (b BurnInConfig) withDefaults() BurnInConfig {
	if b.MinIterations == 0 {
		b.MinIterations = 10000
	}
	if b.L2Threshold == 0 {
		b.L2Threshold = 1.0
	}
	if b.ToleranceWindow == 0 {
		b.ToleranceWindow = 1000
	}
	if b.RelTolerance == 0 {
		b.RelTolerance = 0.05
	}
	return b
}

// Config bundles everything Run needs beyond the initial model/datapoint.
type Config struct {
	Kernel model1d.KernelConfig
	BurnIn BurnInConfig

	NMarkovChains     int // post-burn iteration budget, N_mcmc
	WindowSize        int // W_plot: iterations per acceptance-rate window
	CovarianceScaling float64
	Lambda            float64 // Sigma^-1 regularisation weight
	MultiplierStep    float64 // multiplicative nudge to target_misfit before burn-in
	PosteriorBins     int
}

// Result is the logical content of the persisted per-datapoint record
// (spec.md §6 "Persisted record per datapoint").
type Result struct {
	Iteration         int
	BurnedInIteration int
	BestIteration     int
	BurnedIn          bool
	Failed            bool
	Multiplier        float64
	AcceptanceRate    []float64
	MisfitTrace       []float64
	Halfspace         float64
	BestModel         *model1d.Model1D
	BestDatapoint     *datapoint.Datapoint
	CurrentModel      *model1d.Model1D
	CurrentDatapoint  *datapoint.Datapoint
	Audit             []AuditEntry
}

// Inference1D runs the reversible-jump chain for one sounding.
type Inference1D struct {
	cfg Config
	rng *rand.Rand
	log *logging.Logger

	state     State
	halfspace float64

	current  *model1d.Model1D
	current2 *datapoint.Datapoint

	pending proposalContext

	logPrior      float64
	logLikelihood float64
	rho           float64

	burnedIn        bool
	iteration       int
	burnedInIter    int
	targetMisfit    float64
	multiplier      float64
	misfitChiSquare distribution.ChiSquared
	misfitHistogram *mesh.Histogram1D
	toleranceStreak int

	windowAccepted int
	windowTotal    int
	acceptanceRate []float64
	misfitTrace    []float64

	bestRho       float64
	bestIteration int
	bestModel     *model1d.Model1D
	bestDatapoint *datapoint.Datapoint

	audit []AuditEntry
}

// AuditEntry records a one-time lifecycle event for post-hoc diagnosis
// (the burn-in posterior reset, primarily) — adapted from the teacher's
// cleanup-coordinator audit log.
type AuditEntry struct {
	Iteration int
	Event     string
	Detail    string
}

// New constructs an Inference1D ready to Run from an initial model and
// datapoint. halfspace is the best-fitting uniform conductivity the caller
// obtained via forward.BestHalfspace before building the initial model
// (spec.md §4.H step 1 "Initialise") — stored only for the persisted
// record, not re-derived here.
func New(cfg Config, rng *rand.Rand, log *logging.Logger, initial *model1d.Model1D, dp *datapoint.Datapoint, halfspace float64) *Inference1D {
	cfg.BurnIn = cfg.BurnIn.withDefaults()
	return &Inference1D{
		cfg:       cfg,
		rng:       rng,
		log:       log,
		state:     StateInitialise,
		current:   initial,
		current2:  dp,
		halfspace: halfspace,
	}
}

// Run drives the state machine to completion or until ctx is cancelled.
// Cancellation is checked before every state transition, so it also holds
// at every window boundary; a cancelled run returns its partial result
// with Failed set.
func (inf *Inference1D) Run(ctx context.Context) (*Result, error) {
	if err := inf.initialise(); err != nil {
		return inf.result(true), err
	}

	for inf.state != StateTerminate {
		select {
		case <-ctx.Done():
			return inf.result(true), nil // partial results preserved, per spec.md §5
		default:
		}

		if err := inf.step(); err != nil {
			if _, isNumeric := err.(*errs.NumericError); isNumeric {
				// a rejected proposal due to a singular Sigma^-1 is not a
				// chain failure: log and continue with the current state.
				inf.log.Warn("proposal rejected", "reason", err.Error(), "iteration", inf.iteration)
				inf.state = StateRecord
				continue
			}
			return inf.result(true), err
		}
	}
	return inf.result(false), nil
}

func (inf *Inference1D) result(failed bool) *Result {
	return &Result{
		Iteration:         inf.iteration,
		BurnedInIteration: inf.burnedInIter,
		BestIteration:     inf.bestIteration,
		BurnedIn:          inf.burnedIn,
		Failed:            failed,
		Multiplier:        inf.multiplier,
		AcceptanceRate:    inf.acceptanceRate,
		MisfitTrace:       inf.misfitTrace,
		Halfspace:         inf.halfspace,
		BestModel:         inf.bestModel,
		BestDatapoint:     inf.bestDatapoint,
		CurrentModel:      inf.current,
		CurrentDatapoint:  inf.current2,
		Audit:             inf.audit,
	}
}

func (inf *Inference1D) initialise() error {
	if err := inf.current2.UpdatePredicted(inf.current.ToProfile()); err != nil {
		return err
	}

	active := 0
	for _, a := range inf.current2.Active {
		if a {
			active++
		}
	}
	inf.targetMisfit = float64(active)
	inf.misfitChiSquare = distribution.ChiSquared{DF: inf.targetMisfit}
	inf.misfitHistogram = mesh.NewHistogram1D(inf.misfitChiSquare.Bins(inf.cfg.PosteriorBins))
	inf.multiplier = 1.0

	lp, err := inf.current.LogPrior(inf.cfg.Kernel.Bounds)
	if err != nil {
		return err
	}
	ll, err := inf.current2.LogLikelihood()
	if err != nil {
		return err
	}
	inf.logPrior = lp
	inf.logLikelihood = ll
	inf.rho = lp + ll + inf.current2.LogProbability()

	if inf.current.Posterior == nil && inf.cfg.PosteriorBins > 0 {
		inf.current.Posterior = model1d.NewPosterior(inf.cfg.Kernel.Bounds, inf.cfg.PosteriorBins, inf.cfg.PosteriorBins)
	}

	inf.bestRho = inf.rho
	inf.bestModel = inf.current.Clone()
	inf.bestDatapoint = inf.current2.Clone()
	inf.bestIteration = 0

	inf.state = StatePropose
	return nil
}

// step advances exactly one state transition. On a geometry-valid
// iteration this walks Propose -> Evaluate -> AcceptReject -> Record ->
// CheckBurnIn and loops back to Propose (or to Terminate once the
// iteration budget is exhausted).
func (inf *Inference1D) step() error {
	switch inf.state {
	case StatePropose:
		return inf.propose()
	case StateEvaluate:
		return inf.evaluate()
	case StateAcceptReject:
		return inf.acceptReject()
	case StateRecord:
		return inf.record()
	case StateCheckBurnIn:
		return inf.checkBurnIn()
	default:
		inf.state = StateTerminate
		return nil
	}
}

type proposalContext struct {
	candidateModel *model1d.Model1D
	candidateDP    *datapoint.Datapoint
	action         model1d.Action
	logQFwd        float64
	logQBwd        float64
}

func (inf *Inference1D) propose() error {
	candidateModel, action, logQFwd, logQBwd, ok, err := model1d.Propose(inf.rng, inf.current, inf.cfg.Kernel)
	if err != nil {
		return err
	}
	if !ok {
		// geometry-invalid draw: treated as an immediate reject, no state
		// change, go straight to recording this iteration.
		inf.state = StateRecord
		inf.windowTotal++
		inf.iteration++
		return nil
	}

	// birth/death allocate a fresh Model1D rather than Clone-ing, so the
	// shared Posterior accumulator has to be carried over explicitly here.
	candidateModel.Posterior = inf.current.Posterior

	candidateDP := inf.current2.Clone()
	candidateDP.Perturb(inf.rng)

	jac, err := forward.Sensitivity(inf.current2.System, inf.current.ToProfile(), inf.current2.HeightValue())
	if err != nil {
		return err
	}
	layerIndex := splitOrDoomedIndex(inf.current, candidateModel, action)
	remapped := model1d.RemapJacobian(jac, action, layerIndex)

	variance := activeVariance(candidateDP)
	proposal, err := model1d.LocalVarianceProposal(remapped, variance, inf.cfg.Lambda, inf.cfg.Kernel.SigmaGrad, inf.cfg.CovarianceScaling, candidateModel.Values)
	if err != nil {
		return err
	}
	// the MvLogNormal proposal samples exp(z); Values stay in ln-space.
	sample := proposal.Sample(inf.rng)
	for i, v := range sample {
		sample[i] = math.Log(v)
	}
	candidateModel.Values = sample

	inf.pending = proposalContext{
		candidateModel: candidateModel,
		candidateDP:    candidateDP,
		action:         action,
		logQFwd:        logQFwd,
		logQBwd:        logQBwd,
	}
	inf.state = StateEvaluate
	return nil
}

func (inf *Inference1D) evaluate() error {
	p := inf.pending
	if err := p.candidateDP.UpdatePredicted(p.candidateModel.ToProfile()); err != nil {
		return err
	}
	inf.state = StateAcceptReject
	return nil
}

func (inf *Inference1D) acceptReject() error {
	p := inf.pending

	lpCandidate, err := p.candidateModel.LogPrior(inf.cfg.Kernel.Bounds)
	if err != nil {
		return err
	}
	llCandidate, err := p.candidateDP.LogLikelihood()
	if err != nil {
		return err
	}
	rhoCandidate := lpCandidate + llCandidate + p.candidateDP.LogProbability()

	logAlpha := rhoCandidate - inf.rho + p.logQBwd - p.logQFwd
	accepted := logAlpha >= 0 || math.Log(inf.rng.Float64()) < logAlpha

	inf.windowTotal++
	inf.iteration++

	if accepted {
		inf.windowAccepted++
		inf.current = p.candidateModel
		inf.current2 = p.candidateDP
		inf.logPrior = lpCandidate
		inf.logLikelihood = llCandidate
		inf.rho = rhoCandidate
	}

	if inf.rho > inf.bestRho {
		inf.bestRho = inf.rho
		inf.bestModel = inf.current.Clone()
		inf.bestDatapoint = inf.current2.Clone()
		inf.bestIteration = inf.iteration
	}

	inf.state = StateRecord
	return nil
}

func (inf *Inference1D) record() error {
	misfit, err := inf.current2.DataMisfit()
	if err != nil {
		return err
	}
	inf.misfitTrace = append(inf.misfitTrace, misfit)
	inf.misfitHistogram.Update(misfit)

	windowSize := inf.cfg.WindowSize
	if windowSize <= 0 {
		windowSize = 1000
	}
	if inf.windowTotal >= windowSize {
		rate := 100 * float64(inf.windowAccepted) / float64(inf.windowTotal)
		inf.acceptanceRate = append(inf.acceptanceRate, rate)
		inf.windowAccepted, inf.windowTotal = 0, 0

		// spec.md §4.H "Multiplier adaptation": engaged only when the
		// relative error is not itself a sampled parameter.
		if !inf.burnedIn && (inf.current2.RelErr == nil || inf.current2.RelErr.Prior == nil) {
			inf.multiplier *= 1 + inf.cfg.MultiplierStep
		}
	}

	if math.Abs(misfit-inf.multiplier*inf.targetMisfit) <= inf.cfg.BurnIn.RelTolerance*inf.multiplier*inf.targetMisfit {
		inf.toleranceStreak++
	} else {
		inf.toleranceStreak = 0
	}

	inf.state = StateCheckBurnIn
	return nil
}

func (inf *Inference1D) checkBurnIn() error {
	if !inf.burnedIn {
		l2 := l2Distance(inf.misfitHistogram, inf.misfitChiSquare)
		nearTarget := inf.toleranceStreak >= inf.cfg.BurnIn.ToleranceWindow
		pastMinIterations := inf.iteration > inf.cfg.BurnIn.MinIterations

		if pastMinIterations && (l2 < inf.cfg.BurnIn.L2Threshold || nearTarget) {
			inf.burnedIn = true
			inf.burnedInIter = inf.iteration
			inf.resetPosteriors()
			inf.bestModel = inf.current.Clone()
			inf.bestDatapoint = inf.current2.Clone()
			inf.bestRho = inf.rho
			inf.bestIteration = inf.iteration
			inf.audit = append(inf.audit, AuditEntry{
				Iteration: inf.iteration,
				Event:     "burn_in",
				Detail:    "posteriors reset, best tracking restarted from the burn-in state",
			})
		}
	} else {
		inf.updatePosteriors()
	}

	if inf.burnedIn && inf.iteration >= inf.burnedInIter+inf.cfg.NMarkovChains {
		inf.state = StateTerminate
		return nil
	}
	inf.state = StatePropose
	return nil
}

func (inf *Inference1D) resetPosteriors() {
	if inf.current2.Height != nil {
		inf.current2.Height.ResetPosterior()
	}
	if inf.current2.RelErr != nil {
		inf.current2.RelErr.ResetPosterior()
	}
	if inf.current2.AddErr != nil {
		inf.current2.AddErr.ResetPosterior()
	}
	if inf.current.Posterior != nil {
		inf.current.Posterior.Reset()
	}
}

func (inf *Inference1D) updatePosteriors() {
	if inf.current2.Height != nil {
		inf.current2.Height.UpdatePosterior()
	}
	if inf.current2.RelErr != nil {
		inf.current2.RelErr.UpdatePosterior()
	}
	if inf.current2.AddErr != nil {
		inf.current2.AddErr.UpdatePosterior()
	}
	if inf.current.Posterior != nil {
		inf.current.Posterior.Update(inf.current, inf.cfg.Kernel.Bounds)
	}
}

func activeVariance(dp *datapoint.Datapoint) []float64 {
	variance := make([]float64, dp.NumChannels())
	for i, active := range dp.Active {
		if !active {
			continue
		}
		variance[i] = dp.Sigma[i] * dp.Sigma[i]
	}
	return variance
}

// splitOrDoomedIndex recovers the layer index RemapJacobian needs from the
// before/after edge counts, since Propose does not thread it through
// separately.
func splitOrDoomedIndex(before, after *model1d.Model1D, action model1d.Action) int {
	switch action {
	case model1d.ActionBirth:
		for i, e := range after.Edges {
			if i >= len(before.Edges) || e != before.Edges[i] {
				return i
			}
		}
		return len(before.Edges)
	case model1d.ActionDeath:
		for i, e := range before.Edges {
			if i >= len(after.Edges) || e != after.Edges[i] {
				return i
			}
		}
		return len(after.Edges)
	default:
		return 0
	}
}

// l2Distance compares the (normalised) misfit-trace histogram against the
// target chi-squared pdf evaluated at each bin centre (spec.md §4.H).
func l2Distance(hist *mesh.Histogram1D, target distribution.ChiSquared) float64 {
	total := hist.Total()
	if total == 0 {
		return math.Inf(1)
	}
	sum := 0.0
	centres := hist.Mesh.Centres()
	for i, count := range hist.Counts {
		density := count / total
		targetDensity := math.Exp(target.LogPDF([]float64{centres[i]}))
		d := density - targetDensity
		sum += d * d
	}
	return math.Sqrt(sum)
}
