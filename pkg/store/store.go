// Package store persists story records, their entity casts, and their
// pages in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fable/pkg/story"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// CreateStory inserts a fresh (pending) story record.
func (s *Store) CreateStory(ctx context.Context, st *story.Story) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO stories(id,title,description,story_type,age_range,art_style,color_mode,page_count,status,error,failed_at,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		st.ID, st.Brief.Title, st.Brief.Description, st.Brief.StoryType,
		st.Brief.AgeRange, st.Brief.ArtStyle, string(colorMode(st.Brief)), st.Brief.PageCount,
		string(st.Status), st.Error, st.FailedAt, st.CreatedAt, st.UpdatedAt)
	return err
}

// UpdateStatus records a status transition, with failure details when the
// run died on a page.
func (s *Store) UpdateStatus(ctx context.Context, id string, status story.Status, failedAt int, errMsg string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE stories SET status=?, failed_at=?, error=?, updated_at=? WHERE id=?`,
		string(status), failedAt, errMsg, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// SaveResult stores a completed story's entities and pages atomically.
// Only completed stories carry pages; the all-or-nothing contract keeps
// failed runs page-less.
func (s *Store) SaveResult(ctx context.Context, st *story.Story) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE stories SET status=?, error='', failed_at=0, updated_at=? WHERE id=?`,
		string(st.Status), time.Now().UTC(), st.ID); err != nil {
		return err
	}

	for _, e := range st.Entities {
		refPage, refMime, genID := 0, "", ""
		if e.Reference != nil {
			refPage = e.Reference.Page
			refMime = e.Reference.MimeType
			genID = e.Reference.GenerationID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO entities(story_id,id,name,type,description,reference_page,reference_mime,generation_id)
			 VALUES (?,?,?,?,?,?,?,?)`,
			st.ID, e.ID, e.Name, string(e.Type), e.Description, refPage, refMime, genID); err != nil {
			return err
		}
	}

	for _, p := range st.Pages {
		ids, err := json.Marshal(p.EntityIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO pages(story_id,page_number,text,entity_ids,image_prompt,image_url)
			 VALUES (?,?,?,?,?,?)`,
			st.ID, p.PageNumber, p.Text, string(ids), p.ImagePrompt, p.ImageURL); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetStory loads the full record: config, status, entities, and pages.
func (s *Store) GetStory(ctx context.Context, id string) (*story.Story, error) {
	st, err := scanStory(s.DB.QueryRowContext(ctx,
		`SELECT id,title,description,story_type,age_range,art_style,color_mode,page_count,status,error,failed_at,created_at,updated_at
		 FROM stories WHERE id=?`, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id,name,type,description,reference_page,reference_mime,generation_id
		 FROM entities WHERE story_id=? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e story.Entity
		var refPage int
		var refMime, genID string
		if err := rows.Scan(&e.ID, &e.Name, (*string)(&e.Type), &e.Description, &refPage, &refMime, &genID); err != nil {
			return nil, err
		}
		if refPage > 0 {
			e.Reference = &story.Reference{Page: refPage, MimeType: refMime, GenerationID: genID}
		}
		st.Entities = append(st.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.DB.QueryContext(ctx,
		`SELECT page_number,text,entity_ids,image_prompt,image_url
		 FROM pages WHERE story_id=? ORDER BY page_number ASC`, id)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var p story.Page
		var ids string
		if err := prows.Scan(&p.PageNumber, &p.Text, &ids, &p.ImagePrompt, &p.ImageURL); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &p.EntityIDs); err != nil {
			return nil, fmt.Errorf("page %d entity ids: %w", p.PageNumber, err)
		}
		st.Pages = append(st.Pages, p)
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	return st, nil
}

// ListStories returns every story record without entities or pages,
// newest first.
func (s *Store) ListStories(ctx context.Context) ([]*story.Story, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id,title,description,story_type,age_range,art_style,color_mode,page_count,status,error,failed_at,created_at,updated_at
		 FROM stories ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*story.Story
	for rows.Next() {
		st, err := scanStoryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// DeleteStory removes the record; entities and pages cascade.
func (s *Store) DeleteStory(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM stories WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// UpdatePageText replaces one page's narrative text after a manual edit.
func (s *Store) UpdatePageText(ctx context.Context, id string, page int, text string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE pages SET text=? WHERE story_id=? AND page_number=?`, text, id, page)
	if err != nil {
		return err
	}
	if err := mustAffect(res); err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `UPDATE stories SET updated_at=? WHERE id=?`, time.Now().UTC(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row *sql.Row) (*story.Story, error) {
	st, err := scanStoryRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return st, err
}

func scanStoryRows(row rowScanner) (*story.Story, error) {
	var st story.Story
	var colorMode string
	err := row.Scan(&st.ID, &st.Brief.Title, &st.Brief.Description, &st.Brief.StoryType,
		&st.Brief.AgeRange, &st.Brief.ArtStyle, &colorMode, &st.Brief.PageCount,
		(*string)(&st.Status), &st.Error, &st.FailedAt, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	st.Brief.ColorMode = story.ColorMode(colorMode)
	return &st, nil
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func colorMode(b story.Brief) story.ColorMode {
	if b.ColorMode == "" {
		return story.ColorModeColor
	}
	return b.ColorMode
}
