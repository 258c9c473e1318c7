package completion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"backend-runstr/internal/config"
	"backend-runstr/internal/logging"
	"backend-runstr/internal/reward"
	"backend-runstr/internal/social"
	"backend-runstr/internal/wallet"
	"backend-runstr/internal/workout"
)

const (
	StepSave        = "save"
	StepEligibility = "eligibility"
	StepReward      = "reward"
	StepMint        = "mint"
	StepPublish     = "publish"
)

type WorkoutSaver interface {
	Save(ctx context.Context, w workout.Workout) error
}

type RewardFinalizer interface {
	Finalize(ctx context.Context, userID string, w workout.Workout, completionDay time.Time) (reward.Result, error)
}

type Payer interface {
	Pay(ctx context.Context, userID, workoutID string, amount int64, memo string) (wallet.Payout, error)
}

type Publisher interface {
	PublishWorkout(ctx context.Context, userID string, w workout.Workout) (social.Post, error)
}

// Policy is the minimum effort a workout needs before it earns anything.
// Activities without a distance component are judged on duration alone.
type Policy struct {
	MinDurationSeconds int64
	MinDistanceMeters  float64
}

func PolicyFromConfig(r config.Reward) Policy {
	return Policy{MinDurationSeconds: r.MinDurationSeconds, MinDistanceMeters: r.MinDistanceMeters}
}

func (p Policy) Eligible(w workout.Workout) bool {
	if w.DurationSeconds < float64(p.MinDurationSeconds) {
		return false
	}
	if w.ActivityKind == workout.ActivityOther {
		return true
	}
	return w.DistanceMeters >= p.MinDistanceMeters
}

type StepResult struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Err     string `json:"error,omitempty"`
}

type Result struct {
	Workout workout.Workout `json:"workout"`
	Reward  *reward.Result  `json:"reward,omitempty"`
	Payout  *wallet.Payout  `json:"payout,omitempty"`
	Post    *social.Post    `json:"post,omitempty"`
	Steps   []StepResult    `json:"steps"`
}

// Step returns the named step's outcome.
func (r Result) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Pipeline runs the side effects of a finished workout in order. A save
// failure stops the run. A reward failure skips the mint but the workout is
// still published before the error is returned. Minting and publishing are
// recorded in the result and never undo earlier steps.
type Pipeline struct {
	saver     WorkoutSaver
	rewards   RewardFinalizer
	payer     Payer
	publisher Publisher
	policy    Policy
	logger    *slog.Logger
}

// NewPipeline wires the collaborators. A nil payer or publisher skips that step.
func NewPipeline(saver WorkoutSaver, rewards RewardFinalizer, payer Payer, publisher Publisher, policy Policy, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		saver:     saver,
		rewards:   rewards,
		payer:     payer,
		publisher: publisher,
		policy:    policy,
		logger:    logging.OrDiscard(logger),
	}
}

func (p *Pipeline) Run(ctx context.Context, userID string, w workout.Workout, completionDay time.Time) (Result, error) {
	res := Result{Workout: w}
	log := p.logger.With("user_id", userID, "workout_id", w.ID)

	if err := p.saver.Save(ctx, w); err != nil {
		res.Steps = append(res.Steps, failed(StepSave, err))
		return res, fmt.Errorf("save workout: %w", err)
	}
	res.Steps = append(res.Steps, StepResult{Name: StepSave, OK: true})

	if !p.policy.Eligible(w) {
		res.Steps = append(res.Steps,
			StepResult{Name: StepEligibility, Err: "below minimum effort"},
			skipped(StepReward),
			skipped(StepMint))
		log.Info("workout below minimum effort", "distance_m", w.DistanceMeters, "duration_sec", w.DurationSeconds)
		res.Reward = &reward.Result{}
		p.publish(ctx, log, userID, w, &res)
		return res, nil
	}
	res.Steps = append(res.Steps, StepResult{Name: StepEligibility, OK: true})

	rr, err := p.rewards.Finalize(ctx, userID, w, completionDay)
	if err != nil {
		res.Steps = append(res.Steps, failed(StepReward, err), skipped(StepMint))
		p.publish(ctx, log, userID, w, &res)
		return res, fmt.Errorf("finalize reward: %w", err)
	}
	res.Reward = &rr
	res.Steps = append(res.Steps, StepResult{Name: StepReward, OK: true})

	p.mint(ctx, log, userID, w, &res)
	p.publish(ctx, log, userID, w, &res)
	return res, nil
}

func (p *Pipeline) mint(ctx context.Context, log *slog.Logger, userID string, w workout.Workout, res *Result) {
	amount := res.Reward.Breakdown.Total
	if p.payer == nil || amount <= 0 {
		res.Steps = append(res.Steps, skipped(StepMint))
		return
	}
	payout, err := p.payer.Pay(ctx, userID, w.ID, amount, memo(w))
	if payout.ID != "" {
		res.Payout = &payout
	}
	if err != nil {
		log.Warn("reward mint failed", "amount", amount, "error", err)
		res.Steps = append(res.Steps, failed(StepMint, err))
		return
	}
	res.Steps = append(res.Steps, StepResult{Name: StepMint, OK: true})
}

func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, userID string, w workout.Workout, res *Result) {
	if p.publisher == nil {
		res.Steps = append(res.Steps, skipped(StepPublish))
		return
	}
	post, err := p.publisher.PublishWorkout(ctx, userID, w)
	if err != nil {
		log.Warn("workout publish failed", "error", err)
		res.Steps = append(res.Steps, failed(StepPublish, err))
		return
	}
	res.Post = &post
	res.Steps = append(res.Steps, StepResult{Name: StepPublish, OK: true})
}

func memo(w workout.Workout) string {
	return fmt.Sprintf("RUNSTR reward: %.2f km %s", w.DistanceKm(), w.ActivityKind)
}

func failed(name string, err error) StepResult {
	return StepResult{Name: name, Err: err.Error()}
}

func skipped(name string) StepResult {
	return StepResult{Name: name, Skipped: true}
}
