package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pivotpath.io/engine/core/db"
	"pivotpath.io/engine/internal/model"
)

// Store is the Postgres implementation of Repository and AnalysisStore.
type Store struct {
	db *db.DB
}

func New(database *db.DB) *Store {
	return &Store{db: database}
}

func (s *Store) CreateAnalysis(ctx context.Context, analysis *model.Analysis) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO analyses (id, source_role, target_role, known_skills, status, degraded, created_at)
		VALUES ($1, $2, $3, $4, $5, false, now())`,
		analysis.ID, analysis.SourceRole, analysis.TargetRole, analysis.KnownSkills, analysis.Status)
	if err != nil {
		return fmt.Errorf("creating analysis: %w", err)
	}
	return nil
}

func (s *Store) GetAnalysis(ctx context.Context, id int64) (*model.Analysis, error) {
	row := s.db.Pool().QueryRow(ctx, `
		SELECT id, source_role, target_role, known_skills, status, degraded, created_at, started_at, completed_at
		FROM analyses WHERE id = $1`, id)

	var a model.Analysis
	err := row.Scan(&a.ID, &a.SourceRole, &a.TargetRole, &a.KnownSkills,
		&a.Status, &a.Degraded, &a.CreatedAt, &a.StartedAt, &a.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting analysis: %w", err)
	}
	return &a, nil
}

func (s *Store) MarkRunning(ctx context.Context, id int64) error {
	_, err := s.db.Pool().Exec(ctx, `
		UPDATE analyses SET status = $2, started_at = now() WHERE id = $1`,
		id, model.AnalysisStatusRunning)
	if err != nil {
		return fmt.Errorf("marking analysis running: %w", err)
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id int64) error {
	_, err := s.db.Pool().Exec(ctx, `
		UPDATE analyses SET status = $2, completed_at = now() WHERE id = $1`,
		id, model.AnalysisStatusFailed)
	if err != nil {
		return fmt.Errorf("marking analysis failed: %w", err)
	}
	return nil
}

func (s *Store) MarkComplete(ctx context.Context, analysisID int64, degraded bool) error {
	_, err := s.db.Pool().Exec(ctx, `
		UPDATE analyses SET status = $2, degraded = $3, completed_at = now() WHERE id = $1`,
		analysisID, model.AnalysisStatusComplete, degraded)
	if err != nil {
		return fmt.Errorf("marking analysis complete: %w", err)
	}
	return nil
}

// ClearAnalysis removes every record from a prior run with the same id.
// Milestone resources go with their milestones via cascade.
func (s *Store) ClearAnalysis(ctx context.Context, analysisID int64) error {
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, table := range []string{"evidence_documents", "skill_gaps", "insights", "milestones"} {
			if _, err := tx.Exec(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE analysis_id = $1", table), analysisID); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing analysis: %w", err)
	}
	return nil
}

func (s *Store) SaveEvidence(ctx context.Context, analysisID int64, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			"DELETE FROM evidence_documents WHERE analysis_id = $1", analysisID); err != nil {
			return err
		}
		for _, doc := range docs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO evidence_documents (analysis_id, title, body, url)
				VALUES ($1, $2, $3, $4)`,
				analysisID, doc.Title, doc.Body, doc.URL); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving evidence: %w", err)
	}
	return nil
}

func (s *Store) SaveSkillGaps(ctx context.Context, analysisID int64, gaps []model.SkillGap) error {
	if len(gaps) == 0 {
		return nil
	}

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			"DELETE FROM skill_gaps WHERE analysis_id = $1", analysisID); err != nil {
			return err
		}
		for _, gap := range gaps {
			if _, err := tx.Exec(ctx, `
				INSERT INTO skill_gaps (analysis_id, skill_name, gap_level, confidence_score, mention_count, context_summary)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				analysisID, gap.SkillName, gap.GapLevel, gap.ConfidenceScore,
				gap.MentionCount, gap.ContextSummary); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving skill gaps: %w", err)
	}
	return nil
}

func (s *Store) SaveInsight(ctx context.Context, analysisID int64, insight model.Insight) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO insights (analysis_id, key_observations, common_challenges, success_rate, timeframe)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (analysis_id) DO UPDATE SET
			key_observations = EXCLUDED.key_observations,
			common_challenges = EXCLUDED.common_challenges,
			success_rate = EXCLUDED.success_rate,
			timeframe = EXCLUDED.timeframe`,
		analysisID, insight.KeyObservations, insight.CommonChallenges,
		insight.SuccessRate, insight.Timeframe)
	if err != nil {
		return fmt.Errorf("saving insight: %w", err)
	}
	return nil
}

// SavePlan writes milestones and their resources as a unit. A plan read
// by a consumer either has zero milestones or a fully resourced set.
func (s *Store) SavePlan(ctx context.Context, analysisID int64, plan model.Plan) error {
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			"DELETE FROM milestones WHERE analysis_id = $1", analysisID); err != nil {
			return err
		}

		for _, m := range plan.Milestones {
			var milestoneID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO milestones (analysis_id, title, description, priority, duration_weeks, position)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				analysisID, m.Title, m.Description, m.Priority, m.DurationWeeks, m.Order,
			).Scan(&milestoneID)
			if err != nil {
				return fmt.Errorf("inserting milestone %q: %w", m.Title, err)
			}

			for _, r := range m.Resources {
				if _, err := tx.Exec(ctx, `
					INSERT INTO milestone_resources (milestone_id, title, url, kind)
					VALUES ($1, $2, $3, $4)`,
					milestoneID, r.Title, r.URL, r.Kind); err != nil {
					return fmt.Errorf("inserting resource %q: %w", r.Title, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving plan: %w", err)
	}
	return nil
}

// GetResult assembles the persisted AnalysisResult view for the API.
func (s *Store) GetResult(ctx context.Context, id int64) (*model.AnalysisResult, error) {
	analysis, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &model.AnalysisResult{
		AnalysisID: id,
		Degraded:   analysis.Degraded,
	}

	rows, err := s.db.Pool().Query(ctx, `
		SELECT skill_name, gap_level, confidence_score, mention_count, context_summary
		FROM skill_gaps WHERE analysis_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("listing skill gaps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var gap model.SkillGap
		if err := rows.Scan(&gap.SkillName, &gap.GapLevel, &gap.ConfidenceScore,
			&gap.MentionCount, &gap.ContextSummary); err != nil {
			return nil, fmt.Errorf("scanning skill gap: %w", err)
		}
		result.SkillGaps = append(result.SkillGaps, gap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing skill gaps: %w", err)
	}

	insight, err := s.getInsight(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Insight = insight

	plan, err := s.getPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Plan = plan

	return result, nil
}

func (s *Store) getInsight(ctx context.Context, analysisID int64) (*model.Insight, error) {
	row := s.db.Pool().QueryRow(ctx, `
		SELECT key_observations, common_challenges, success_rate, timeframe
		FROM insights WHERE analysis_id = $1`, analysisID)

	var insight model.Insight
	err := row.Scan(&insight.KeyObservations, &insight.CommonChallenges,
		&insight.SuccessRate, &insight.Timeframe)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting insight: %w", err)
	}
	return &insight, nil
}

func (s *Store) getPlan(ctx context.Context, analysisID int64) (*model.Plan, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, title, description, priority, duration_weeks, position
		FROM milestones WHERE analysis_id = $1 ORDER BY position`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	defer rows.Close()

	var milestones []model.Milestone
	var milestoneIDs []int64
	for rows.Next() {
		var m model.Milestone
		var milestoneID int64
		if err := rows.Scan(&milestoneID, &m.Title, &m.Description, &m.Priority,
			&m.DurationWeeks, &m.Order); err != nil {
			return nil, fmt.Errorf("scanning milestone: %w", err)
		}
		milestones = append(milestones, m)
		milestoneIDs = append(milestoneIDs, milestoneID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	if len(milestones) == 0 {
		return nil, nil
	}

	for i, milestoneID := range milestoneIDs {
		resources, err := s.listResources(ctx, milestoneID)
		if err != nil {
			return nil, err
		}
		milestones[i].Resources = resources
	}

	return &model.Plan{Milestones: milestones}, nil
}

func (s *Store) listResources(ctx context.Context, milestoneID int64) ([]model.Resource, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT title, url, kind
		FROM milestone_resources WHERE milestone_id = $1 ORDER BY id`, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	defer rows.Close()

	var resources []model.Resource
	for rows.Next() {
		var r model.Resource
		if err := rows.Scan(&r.Title, &r.URL, &r.Kind); err != nil {
			return nil, fmt.Errorf("scanning resource: %w", err)
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}
