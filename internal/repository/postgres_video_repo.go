package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/mediashare/internal/model"
	"github.com/hitoshi/mediashare/internal/ownership"
)

// PostgresVideoRepo はPostgreSQLを使用した動画リポジトリ。
type PostgresVideoRepo struct {
	db *sql.DB
}

// NewPostgresVideoRepo はPostgresVideoRepoを生成する。
func NewPostgresVideoRepo(db *sql.DB) *PostgresVideoRepo {
	return &PostgresVideoRepo{db: db}
}

// Create は動画を作成する。created_at、updated_atはDBの値で上書きされる。
func (r *PostgresVideoRepo) Create(ctx context.Context, video *model.Video) error {
	views := video.Views
	if views == nil {
		views = []int64{}
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO videos (id, owner_id, title, description, video_url, thumbnail_url,
		                     duration_seconds, views, is_published)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		video.ID, video.OwnerID, video.Title, video.Description, video.VideoURL, video.ThumbnailURL,
		video.DurationSeconds, pq.Int64Array(views), video.IsPublished,
	).Scan(&video.CreatedAt, &video.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	video.Views = views
	return nil
}

// FindByID は指定IDの動画を取得する。見つからない場合はnilを返す。
func (r *PostgresVideoRepo) FindByID(ctx context.Context, id model.ID) (*model.Video, error) {
	video, err := scanVideo(r.db.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos v WHERE v.id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find video by ID: %w", err)
	}
	return video, nil
}

// UpdateByID はProofが示す動画のタイトル・説明・サムネイルを部分更新する。
// 更新前のサムネイルURLを同一文で取得する。行が存在しない場合はnilを返す。
func (r *PostgresVideoRepo) UpdateByID(ctx context.Context, proof ownership.Proof, patch model.VideoPatch) (*model.Video, string, error) {
	if err := proof.Check(model.KindVideo); err != nil {
		return nil, "", err
	}

	var previousThumbnail string
	video, err := scanVideo(r.db.QueryRowContext(ctx,
		`WITH prev AS (
		     SELECT id, thumbnail_url FROM videos
		     WHERE id = $1 AND owner_id = $2
		     FOR UPDATE
		 )
		 UPDATE videos AS v SET
		     title         = COALESCE($3::text, v.title),
		     description   = COALESCE($4::text, v.description),
		     thumbnail_url = COALESCE($5::text, v.thumbnail_url),
		     updated_at    = now()
		 FROM prev
		 WHERE v.id = prev.id
		 RETURNING `+videoColumns+`, prev.thumbnail_url`,
		proof.ResourceID(), proof.OwnerID(),
		nullString(patch.Title), nullString(patch.Description), nullString(patch.ThumbnailURL),
	), &previousThumbnail)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to update video: %w", err)
	}
	return video, previousThumbnail, nil
}

// DeleteByID はProofが示す動画を削除し、削除した行を返す。
func (r *PostgresVideoRepo) DeleteByID(ctx context.Context, proof ownership.Proof) (*model.Video, error) {
	if err := proof.Check(model.KindVideo); err != nil {
		return nil, err
	}

	video, err := scanVideo(r.db.QueryRowContext(ctx,
		`DELETE FROM videos AS v
		 WHERE v.id = $1 AND v.owner_id = $2
		 RETURNING `+videoColumns,
		proof.ResourceID(), proof.OwnerID(),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete video: %w", err)
	}
	return video, nil
}

// TogglePublished は公開状態を反転する。
// 読み取りと書き込みを単一のUPDATE文で行うため、同時実行でも反転が失われない。
func (r *PostgresVideoRepo) TogglePublished(ctx context.Context, proof ownership.Proof) (*model.Video, error) {
	if err := proof.Check(model.KindVideo); err != nil {
		return nil, err
	}

	video, err := scanVideo(r.db.QueryRowContext(ctx,
		`UPDATE videos AS v
		 SET is_published = NOT v.is_published, updated_at = now()
		 WHERE v.id = $1 AND v.owner_id = $2
		 RETURNING `+videoColumns,
		proof.ResourceID(), proof.OwnerID(),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle video publish status: %w", err)
	}
	return video, nil
}

// ListByOwnerWithOwner は所有者の動画一覧をusersとLEFT JOINして返す。
func (r *PostgresVideoRepo) ListByOwnerWithOwner(ctx context.Context, ownerID model.ID, includeUnpublished bool) ([]model.VideoWithOwner, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+videoColumns+`, `+ownerColumns+`
		 FROM videos v
		 LEFT JOIN users u ON u.id = v.owner_id
		 WHERE v.owner_id = $1 AND ($2 OR v.is_published)
		 ORDER BY v.created_at DESC, v.id DESC`,
		ownerID, includeUnpublished,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos by owner: %w", err)
	}
	defer rows.Close()

	return scanVideosWithOwner(rows)
}

// List は公開中の動画を検索条件に従って返す。
func (r *PostgresVideoRepo) List(ctx context.Context, query model.VideoListQuery) ([]model.VideoWithOwner, int, error) {
	where, args := buildVideoListFilter(query)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM videos v WHERE `+where,
		args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count videos: %w", err)
	}
	if total == 0 {
		return []model.VideoWithOwner{}, 0, nil
	}

	limitArg := len(args) + 1
	args = append(args, query.Limit, query.Offset())
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT `+videoColumns+`, `+ownerColumns+`
		 FROM videos v
		 LEFT JOIN users u ON u.id = v.owner_id
		 WHERE %s
		 ORDER BY %s
		 LIMIT $%d OFFSET $%d`, where, videoOrderBy(query), limitArg, limitArg+1),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	videos, err := scanVideosWithOwner(rows)
	if err != nil {
		return nil, 0, err
	}
	return videos, total, nil
}

// buildVideoListFilter は一覧検索のWHERE句とパラメータを組み立てる。
func buildVideoListFilter(query model.VideoListQuery) (string, []any) {
	conds := []string{"v.is_published"}
	var args []any

	if s := strings.TrimSpace(query.Search); s != "" {
		args = append(args, likePattern(s))
		n := len(args)
		conds = append(conds, fmt.Sprintf("(v.title ILIKE $%d OR v.description ILIKE $%d)", n, n))
	}
	if query.OwnerID != nil {
		args = append(args, *query.OwnerID)
		conds = append(conds, fmt.Sprintf("v.owner_id = $%d", len(args)))
	}

	return strings.Join(conds, " AND "), args
}

// videoSortColumns はソートキーとカラムの対応。ここに無いキーは created_at 扱い。
var videoSortColumns = map[model.VideoSortField]string{
	model.VideoSortCreatedAt: "v.created_at",
	model.VideoSortUpdatedAt: "v.updated_at",
	model.VideoSortTitle:     "v.title",
	model.VideoSortDuration:  "v.duration_seconds",
}

// videoOrderBy はORDER BY句を組み立てる。同値の並びを安定させるためIDを第2キーにする。
func videoOrderBy(query model.VideoListQuery) string {
	col, ok := videoSortColumns[query.SortBy]
	if !ok {
		col = "v.created_at"
	}
	dir := "DESC"
	if query.SortType == model.SortAsc {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s, v.id %s", col, dir, dir)
}

func scanVideosWithOwner(rows *sql.Rows) ([]model.VideoWithOwner, error) {
	var videos []model.VideoWithOwner
	for rows.Next() {
		var owner ownerScan
		video, err := scanVideo(rows, owner.dest()...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, model.VideoWithOwner{Video: *video, Owner: owner.projection()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate videos: %w", err)
	}
	return videos, nil
}

// compile-time interface check
var _ VideoRepository = (*PostgresVideoRepo)(nil)
