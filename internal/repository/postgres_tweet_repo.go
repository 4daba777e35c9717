package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mediashare/internal/model"
	"github.com/hitoshi/mediashare/internal/ownership"
)

// PostgresTweetRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresTweetRepo struct {
	db *sql.DB
}

// NewPostgresTweetRepo はPostgresTweetRepoを生成する。
func NewPostgresTweetRepo(db *sql.DB) *PostgresTweetRepo {
	return &PostgresTweetRepo{db: db}
}

// Create は投稿を作成する。
func (r *PostgresTweetRepo) Create(ctx context.Context, tweet *model.Tweet) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tweets (id, owner_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		tweet.ID, tweet.OwnerID, tweet.Content,
	).Scan(&tweet.CreatedAt, &tweet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tweet: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresTweetRepo) FindByID(ctx context.Context, id model.ID) (*model.Tweet, error) {
	tweet, err := scanTweet(r.db.QueryRowContext(ctx,
		`SELECT `+tweetColumns+` FROM tweets t WHERE t.id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tweet by ID: %w", err)
	}
	return tweet, nil
}

// UpdateByID はProofが示す投稿の本文を更新する。
func (r *PostgresTweetRepo) UpdateByID(ctx context.Context, proof ownership.Proof, patch model.TweetPatch) (*model.Tweet, error) {
	if err := proof.Check(model.KindTweet); err != nil {
		return nil, err
	}

	tweet, err := scanTweet(r.db.QueryRowContext(ctx,
		`UPDATE tweets AS t
		 SET content = COALESCE($3::text, t.content), updated_at = now()
		 WHERE t.id = $1 AND t.owner_id = $2
		 RETURNING `+tweetColumns,
		proof.ResourceID(), proof.OwnerID(), nullString(patch.Content),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update tweet: %w", err)
	}
	return tweet, nil
}

// DeleteByID はProofが示す投稿を削除し、削除した行を返す。
func (r *PostgresTweetRepo) DeleteByID(ctx context.Context, proof ownership.Proof) (*model.Tweet, error) {
	if err := proof.Check(model.KindTweet); err != nil {
		return nil, err
	}

	tweet, err := scanTweet(r.db.QueryRowContext(ctx,
		`DELETE FROM tweets AS t
		 WHERE t.id = $1 AND t.owner_id = $2
		 RETURNING `+tweetColumns,
		proof.ResourceID(), proof.OwnerID(),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete tweet: %w", err)
	}
	return tweet, nil
}

// ListByOwnerWithOwner は所有者の投稿一覧をusersとLEFT JOINして返す。
func (r *PostgresTweetRepo) ListByOwnerWithOwner(ctx context.Context, ownerID model.ID) ([]model.TweetWithOwner, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tweetColumns+`, `+ownerColumns+`
		 FROM tweets t
		 LEFT JOIN users u ON u.id = t.owner_id
		 WHERE t.owner_id = $1
		 ORDER BY t.created_at DESC, t.id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tweets by owner: %w", err)
	}
	defer rows.Close()

	var tweets []model.TweetWithOwner
	for rows.Next() {
		var owner ownerScan
		tweet, err := scanTweet(rows, owner.dest()...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tweet: %w", err)
		}
		tweets = append(tweets, model.TweetWithOwner{Tweet: *tweet, Owner: owner.projection()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tweets: %w", err)
	}
	return tweets, nil
}

// compile-time interface check
var _ TweetRepository = (*PostgresTweetRepo)(nil)
