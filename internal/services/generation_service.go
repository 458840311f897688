package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"zarta-backend/internal/aspect"
	"zarta-backend/internal/credits"
	"zarta-backend/internal/fal"
	"zarta-backend/internal/gemini"
	"zarta-backend/internal/models"
	"zarta-backend/internal/supabase"
)

// Sentinel errors the handlers translate to HTTP statuses.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrProjectNotFound     = errors.New("project not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNotEditable         = errors.New("project is not editable")
	ErrEmptyPrompt         = errors.New("prompt must not be empty")
)

// Edits run the whole submit-poll-persist sequence inside one request, so
// they get a longer budget than a single status poll.
const editPollBudget = 2 * time.Minute

// AccountStore is the slice of the account ledger the pipeline uses.
type AccountStore interface {
	GetAccount(userID string) (*models.Account, error)
	DeductCredits(userID string, required, amount float64, exclusiveZero bool) (bool, error)
}

// ProjectStore is the slice of the project ledger the pipeline uses.
type ProjectStore interface {
	CreateProject(userID, referenceURL, garmentURL string) (*models.Project, error)
	GetProject(projectID uuid.UUID, userID string) (*models.Project, error)
	SetGeneration(projectID uuid.UUID, prompt, aspectRatio, generationID string) error
	MarkProjectComplete(projectID uuid.UUID, finalImageURL string) error
	MarkProjectError(projectID uuid.UUID, errorMsg string) error
	BeginEdit(projectID uuid.UUID, userID, newPrompt string) (*supabase.EditTicket, error)
	CompleteEdit(ticket *supabase.EditTicket, prompt, finalImageURL string) error
	RevertEdit(ticket *supabase.EditTicket) error
}

// PromptComposer derives the styling instruction for a generation.
type PromptComposer interface {
	Compose(ctx context.Context, referenceURL, garmentURL, userPrompt string) gemini.Result
}

// ImageJobs submits and polls asynchronous generation jobs.
type ImageJobs interface {
	SubmitJob(ctx context.Context, prompt, referenceURL, garmentURL, aspectRatio string) (string, error)
	PollUntilDone(ctx context.Context, jobID string, budget, interval time.Duration) (*fal.JobStatus, error)
}

// AssetStore re-uploads provider-hosted images to durable storage.
type AssetStore interface {
	PersistFromURL(userID string, projectID uuid.UUID, sourceURL string) (string, error)
}

// GenerationService sequences the generation pipeline: credit check,
// prompt composition, job submission, client-driven polling, asset
// persistence and the credit deductions around them.
type GenerationService struct {
	accounts AccountStore
	projects ProjectStore
	composer PromptComposer
	jobs     ImageJobs
	assets   AssetStore

	pollBudget   time.Duration
	pollInterval time.Duration
}

func NewGenerationService(accounts AccountStore, projects ProjectStore, composer PromptComposer, jobs ImageJobs, assets AssetStore) *GenerationService {
	return &GenerationService{
		accounts:     accounts,
		projects:     projects,
		composer:     composer,
		jobs:         jobs,
		assets:       assets,
		pollBudget:   fal.DefaultPollBudget,
		pollInterval: fal.DefaultPollInterval,
	}
}

// Generate runs a full generation request up to job submission. The
// submission charge (0.5) lands right after the job is accepted, plus
// another 0.5 when the prompt had to be synthesized; deduction failures
// are logged and swallowed so the generation itself never fails on them.
func (s *GenerationService) Generate(ctx context.Context, userID string, req models.GenerateRequest) (*models.GenerateResponse, error) {
	account, err := s.accounts.GetAccount(userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	policy := credits.For(credits.OpGenerate)
	if !policy.Allows(account.Credits) {
		return nil, ErrInsufficientCredits
	}

	project, err := s.projects.CreateProject(userID, req.ReferenceImageURL, req.GarmentImageURL)
	if err != nil {
		return nil, err
	}

	composed := s.composer.Compose(ctx, req.ReferenceImageURL, req.GarmentImageURL, req.UserPrompt)

	jobID, err := s.jobs.SubmitJob(ctx, composed.Prompt, req.ReferenceImageURL, req.GarmentImageURL, aspect.ToProvider(composed.AspectRatio))
	if err != nil {
		if markErr := s.projects.MarkProjectError(project.ID, err.Error()); markErr != nil {
			log.Printf("Warning: failed to mark project %s error: %v", project.ID, markErr)
		}
		return nil, fmt.Errorf("failed to submit generation job: %w", err)
	}

	if err := s.projects.SetGeneration(project.ID, composed.Prompt, composed.AspectRatio, jobID); err != nil {
		log.Printf("Warning: failed to store generation id for project %s: %v", project.ID, err)
	}

	s.charge(userID, credits.OpGenerate)
	if composed.Billable {
		s.charge(userID, credits.OpPromptSynthesis)
	}

	return &models.GenerateResponse{
		Started:      true,
		ProjectID:    project.ID.String(),
		GenerationID: jobID,
		Prompt:       composed.Prompt,
		AspectRatio:  composed.AspectRatio,
	}, nil
}

// PollStatus advances a processing project by polling the provider within
// this call's bounded budget. Terminal projects are answered from the
// ledger without touching the provider again.
func (s *GenerationService) PollStatus(ctx context.Context, userID string, projectID uuid.UUID) (*models.GenerateStatusResponse, error) {
	project, err := s.projects.GetProject(projectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	switch project.Status {
	case models.StatusComplete:
		return s.statusOf(project), nil
	case models.StatusError:
		return s.statusOf(project), nil
	}

	if !project.GenerationID.Valid || project.GenerationID.String == "" {
		// Job id not attached yet; the client should poll again.
		return s.statusOf(project), nil
	}

	status, err := s.jobs.PollUntilDone(ctx, project.GenerationID.String, s.pollBudget, s.pollInterval)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The caller went away mid-poll. The job itself is fine; the
			// next poll picks it up where this one left off.
			return s.statusOf(project), nil
		}
		return s.failProject(project, fmt.Sprintf("generation failed: %v", err))
	}

	switch status.State {
	case fal.StateRunning:
		return s.statusOf(project), nil
	case fal.StateFailed:
		return s.failProject(project, "generation failed")
	case fal.StateCancelled:
		return s.failProject(project, "generation was cancelled")
	}

	// Succeeded: re-home the provider-hosted image before reporting done.
	finalURL, err := s.assets.PersistFromURL(userID, project.ID, status.ImageURLs[0])
	if err != nil {
		return s.failProject(project, fmt.Sprintf("failed to store generated image: %v", err))
	}

	if err := s.projects.MarkProjectComplete(project.ID, finalURL); err != nil {
		if errors.Is(err, supabase.ErrNotProcessing) {
			// Another request resolved the project first; report its state.
			return s.reload(project, userID)
		}
		return nil, err
	}

	return &models.GenerateStatusResponse{
		ProjectID:     project.ID.String(),
		Status:        models.StatusComplete,
		FinalImageURL: finalURL,
	}, nil
}

// Edit regenerates a completed project with a new prompt, synchronously.
// The full credit is charged only after the edited image is persisted; any
// failure on the way reverts the project to its pre-edit complete state.
func (s *GenerationService) Edit(ctx context.Context, userID string, projectID uuid.UUID, newPrompt string) (*models.EditResponse, error) {
	prompt := strings.TrimSpace(newPrompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	prompt = gemini.Clamp(prompt)

	project, err := s.projects.GetProject(projectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	if project.Status != models.StatusComplete {
		return nil, ErrNotEditable
	}

	account, err := s.accounts.GetAccount(userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if !credits.For(credits.OpEdit).Allows(account.Credits) {
		return nil, ErrInsufficientCredits
	}

	ticket, err := s.projects.BeginEdit(projectID, userID, prompt)
	if err != nil {
		if errors.Is(err, supabase.ErrNotComplete) {
			return nil, ErrNotEditable
		}
		return nil, err
	}

	finalURL, err := s.runEdit(ctx, userID, project, prompt)
	if err != nil {
		// Compensation: edits never leave a project stuck in processing.
		if revertErr := s.projects.RevertEdit(ticket); revertErr != nil {
			log.Printf("Warning: failed to revert edit on project %s: %v", projectID, revertErr)
		}
		return nil, err
	}

	if err := s.projects.CompleteEdit(ticket, prompt, finalURL); err != nil {
		if revertErr := s.projects.RevertEdit(ticket); revertErr != nil {
			log.Printf("Warning: failed to revert edit on project %s: %v", projectID, revertErr)
		}
		return nil, err
	}

	s.charge(userID, credits.OpEdit)

	return &models.EditResponse{
		Success:       true,
		Version:       ticket.NewVersion,
		FinalImageURL: finalURL,
		Prompt:        prompt,
	}, nil
}

// runEdit performs the synchronous submit-poll-persist sequence of an edit.
func (s *GenerationService) runEdit(ctx context.Context, userID string, project *models.Project, prompt string) (string, error) {
	jobID, err := s.jobs.SubmitJob(ctx, prompt, project.ReferenceImageURL, project.GarmentImageURL, aspect.ToProvider(project.AspectRatio))
	if err != nil {
		return "", fmt.Errorf("failed to submit edit job: %w", err)
	}

	status, err := s.jobs.PollUntilDone(ctx, jobID, editPollBudget, s.pollInterval)
	if err != nil {
		return "", fmt.Errorf("edit generation failed: %w", err)
	}
	switch status.State {
	case fal.StateSucceeded:
	case fal.StateRunning:
		return "", fmt.Errorf("edit generation timed out")
	default:
		return "", fmt.Errorf("edit generation %s", status.State)
	}

	finalURL, err := s.assets.PersistFromURL(userID, project.ID, status.ImageURLs[0])
	if err != nil {
		return "", fmt.Errorf("failed to store edited image: %w", err)
	}
	return finalURL, nil
}

// charge applies one operation's deduction, logging and swallowing
// failures: balances may drift and are reconciled by subscription sync.
func (s *GenerationService) charge(userID string, op credits.Operation) {
	policy := credits.For(op)
	ok, err := s.accounts.DeductCredits(userID, policy.Required, policy.Charge, policy.ExclusiveZero)
	if err != nil {
		log.Printf("Warning: failed to deduct %.1f credits (%s) for %s: %v", policy.Charge, op, userID, err)
		return
	}
	if !ok {
		log.Printf("Warning: balance below threshold while charging %.1f credits (%s) for %s", policy.Charge, op, userID)
	}
}

func (s *GenerationService) failProject(project *models.Project, msg string) (*models.GenerateStatusResponse, error) {
	if err := s.projects.MarkProjectError(project.ID, msg); err != nil && !errors.Is(err, supabase.ErrNotProcessing) {
		return nil, err
	}
	return &models.GenerateStatusResponse{
		ProjectID: project.ID.String(),
		Status:    models.StatusError,
		Error:     msg,
	}, nil
}

func (s *GenerationService) reload(project *models.Project, userID string) (*models.GenerateStatusResponse, error) {
	fresh, err := s.projects.GetProject(project.ID, userID)
	if err != nil || fresh == nil {
		return s.statusOf(project), nil
	}
	return s.statusOf(fresh), nil
}

func (s *GenerationService) statusOf(project *models.Project) *models.GenerateStatusResponse {
	resp := &models.GenerateStatusResponse{
		ProjectID: project.ID.String(),
		Status:    project.Status,
	}
	if project.FinalImageURL.Valid {
		resp.FinalImageURL = project.FinalImageURL.String
	}
	if project.ErrorMessage.Valid {
		resp.Error = project.ErrorMessage.String
	}
	return resp
}
