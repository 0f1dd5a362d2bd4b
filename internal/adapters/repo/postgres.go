package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"collecti-backend/internal/domain"
	"collecti-backend/internal/infra/metrics"
)

// Postgres реализует репозитории коллекций, постов и закладок на pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.CollectionRepo  = (*Postgres)(nil)
	_ domain.CollectionIndex = (*Postgres)(nil)
	_ domain.PostRepo        = (*Postgres)(nil)
	_ domain.BookmarkRepo    = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 5*time.Second)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

const collectionColumns = "id, owner_id, name, description, thumbnail, created_at"

func scanCollection(row pgx.Row) (domain.Collection, error) {
	var c domain.Collection
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.Thumbnail, &c.CreatedAt)
	return c, err
}

func collectCollections(rows pgx.Rows) ([]domain.Collection, error) {
	defer rows.Close()
	var out []domain.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCollection реализует domain.CollectionRepo.
func (p *Postgres) CreateCollection(ctx context.Context, c domain.Collection) (domain.Collection, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO collections (id, owner_id, name, description, thumbnail, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (owner_id, id) DO NOTHING
RETURNING `+collectionColumns,
		c.ID, c.OwnerID, c.Name, c.Description, c.Thumbnail, c.CreatedAt)
	created, err := scanCollection(row)
	metrics.ObserveNetworkRequest("postgres", "collection_insert", "collections", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		// Конфликт по фиксированному идентификатору: запись уже есть.
		return p.GetCollection(ctx, c.OwnerID, c.ID)
	}
	if err != nil {
		return domain.Collection{}, fmt.Errorf("вставка коллекции: %w", err)
	}
	return created, nil
}

// GetCollection реализует domain.CollectionRepo.
func (p *Postgres) GetCollection(ctx context.Context, ownerID, id string) (domain.Collection, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT `+collectionColumns+`
FROM collections
WHERE owner_id = $1 AND id = $2
`, ownerID, id)
	c, err := scanCollection(row)
	metrics.ObserveNetworkRequest("postgres", "collection_get", "collections", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Collection{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Collection{}, fmt.Errorf("чтение коллекции: %w", err)
	}
	return c, nil
}

// ListByOwner реализует domain.CollectionRepo.
func (p *Postgres) ListByOwner(ctx context.Context, ownerID string) ([]domain.Collection, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+collectionColumns+`
FROM collections
WHERE owner_id = $1
ORDER BY created_at DESC, id DESC
`, ownerID)
	metrics.ObserveNetworkRequest("postgres", "collection_list_owner", "collections", start, err)
	if err != nil {
		return nil, fmt.Errorf("коллекции владельца: %w", err)
	}
	return collectCollections(rows)
}

// RenameCollection реализует domain.CollectionRepo.
func (p *Postgres) RenameCollection(ctx context.Context, ownerID, id, name, description string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE collections SET name = $3, description = $4
WHERE owner_id = $1 AND id = $2
`, ownerID, id, name, description)
	metrics.ObserveNetworkRequest("postgres", "collection_rename", "collections", start, err)
	if err != nil {
		return fmt.Errorf("обновление коллекции: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteCollection удаляет коллекцию и её посты одной транзакцией.
func (p *Postgres) DeleteCollection(ctx context.Context, ownerID, id string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "collections", start, err)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	start = time.Now()
	_, err = tx.Exec(ctx, `DELETE FROM posts WHERE owner_id = $1 AND collection_id = $2`, ownerID, id)
	metrics.ObserveNetworkRequest("postgres", "posts_delete_by_collection", "posts", start, err)
	if err != nil {
		return fmt.Errorf("удаление постов коллекции: %w", err)
	}

	start = time.Now()
	tag, err := tx.Exec(ctx, `DELETE FROM collections WHERE owner_id = $1 AND id = $2`, ownerID, id)
	metrics.ObserveNetworkRequest("postgres", "collection_delete", "collections", start, err)
	if err != nil {
		return fmt.Errorf("удаление коллекции: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return tx.Commit(ctx)
}

// UpdateThumbnail реализует domain.CollectionRepo.
func (p *Postgres) UpdateThumbnail(ctx context.Context, ownerID, id, thumbnail string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE collections SET thumbnail = $3
WHERE owner_id = $1 AND id = $2
`, ownerID, id, thumbnail)
	metrics.ObserveNetworkRequest("postgres", "collection_thumbnail", "collections", start, err)
	if err != nil {
		return fmt.Errorf("обновление миниатюры: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListCandidates реализует domain.CollectionIndex.
func (p *Postgres) ListCandidates(ctx context.Context, limit int) ([]domain.Collection, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+collectionColumns+`
FROM collections
ORDER BY name, owner_id, id
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "collection_candidates", "collections", start, err)
	if err != nil {
		return nil, fmt.Errorf("пул кандидатов: %w", err)
	}
	return collectCollections(rows)
}

// ListRecent реализует domain.CollectionIndex: свежие коллекции без
// собственных и без корзин по умолчанию.
func (p *Postgres) ListRecent(ctx context.Context, excludeOwner string, limit int) ([]domain.Collection, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+collectionColumns+`
FROM collections
WHERE owner_id <> $1 AND lower(name) <> lower($2)
ORDER BY created_at DESC, owner_id DESC, id DESC
LIMIT $3
`, excludeOwner, domain.DefaultCollectionName, limit)
	metrics.ObserveNetworkRequest("postgres", "collection_recent", "collections", start, err)
	if err != nil {
		return nil, fmt.Errorf("свежие коллекции: %w", err)
	}
	return collectCollections(rows)
}

// PageByCreatedAt реализует domain.CollectionIndex. Keyset-пагинация по
// составному ключу, чтобы одинаковые даты не ломали порядок.
func (p *Postgres) PageByCreatedAt(ctx context.Context, after *domain.PageCursor, limit int) ([]domain.Collection, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		rows, err = p.pool.Query(ctx, `
SELECT `+collectionColumns+`
FROM collections
ORDER BY created_at DESC, owner_id DESC, id DESC
LIMIT $1
`, limit)
	} else {
		rows, err = p.pool.Query(ctx, `
SELECT `+collectionColumns+`
FROM collections
WHERE (created_at, owner_id, id) < ($1, $2, $3)
ORDER BY created_at DESC, owner_id DESC, id DESC
LIMIT $4
`, after.CreatedAt, after.OwnerID, after.ID, limit)
	}
	metrics.ObserveNetworkRequest("postgres", "collection_page_created", "collections", start, err)
	if err != nil {
		return nil, fmt.Errorf("страница по дате: %w", err)
	}
	return collectCollections(rows)
}

// PageByName реализует domain.CollectionIndex.
func (p *Postgres) PageByName(ctx context.Context, after *domain.PageCursor, limit int) ([]domain.Collection, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		rows, err = p.pool.Query(ctx, `
SELECT `+collectionColumns+`
FROM collections
ORDER BY name, owner_id, id
LIMIT $1
`, limit)
	} else {
		rows, err = p.pool.Query(ctx, `
SELECT `+collectionColumns+`
FROM collections
WHERE (name, owner_id, id) > ($1, $2, $3)
ORDER BY name, owner_id, id
LIMIT $4
`, after.Name, after.OwnerID, after.ID, limit)
	}
	metrics.ObserveNetworkRequest("postgres", "collection_page_name", "collections", start, err)
	if err != nil {
		return nil, fmt.Errorf("страница по имени: %w", err)
	}
	return collectCollections(rows)
}

const postColumns = "id, collection_id, owner_id, notes, tags, platform, image, thumbnail, source_url, created_at"

func scanPost(row pgx.Row) (domain.Post, error) {
	var p domain.Post
	err := row.Scan(&p.ID, &p.CollectionID, &p.OwnerID, &p.Notes, &p.Tags,
		&p.Platform, &p.Image, &p.Thumbnail, &p.SourceURL, &p.CreatedAt)
	return p, err
}

// CreatePost реализует domain.PostRepo.
func (p *Postgres) CreatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO posts (id, collection_id, owner_id, notes, tags, platform, image, thumbnail, source_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+postColumns,
		post.ID, post.CollectionID, post.OwnerID, post.Notes, post.Tags,
		post.Platform, post.Image, post.Thumbnail, post.SourceURL, post.CreatedAt)
	created, err := scanPost(row)
	metrics.ObserveNetworkRequest("postgres", "post_insert", "posts", start, err)
	if err != nil {
		return domain.Post{}, fmt.Errorf("вставка поста: %w", err)
	}
	return created, nil
}

// GetPost реализует domain.PostRepo.
func (p *Postgres) GetPost(ctx context.Context, ownerID, id string) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT `+postColumns+`
FROM posts
WHERE owner_id = $1 AND id = $2
`, ownerID, id)
	post, err := scanPost(row)
	metrics.ObserveNetworkRequest("postgres", "post_get", "posts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("чтение поста: %w", err)
	}
	return post, nil
}

// ListByCollection реализует domain.PostRepo.
func (p *Postgres) ListByCollection(ctx context.Context, ownerID, collectionID string) ([]domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+postColumns+`
FROM posts
WHERE owner_id = $1 AND collection_id = $2
ORDER BY created_at DESC, id DESC
`, ownerID, collectionID)
	metrics.ObserveNetworkRequest("postgres", "post_list", "posts", start, err)
	if err != nil {
		return nil, fmt.Errorf("посты коллекции: %w", err)
	}
	defer rows.Close()

	var out []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, post)
	}
	return out, rows.Err()
}

// UpdatePost реализует domain.PostRepo: меняются только заметки и теги.
func (p *Postgres) UpdatePost(ctx context.Context, ownerID, id, notes string, tags []string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE posts SET notes = $3, tags = $4
WHERE owner_id = $1 AND id = $2
`, ownerID, id, notes, tags)
	metrics.ObserveNetworkRequest("postgres", "post_update", "posts", start, err)
	if err != nil {
		return fmt.Errorf("обновление поста: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeletePost реализует domain.PostRepo.
func (p *Postgres) DeletePost(ctx context.Context, ownerID, id string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM posts WHERE owner_id = $1 AND id = $2`, ownerID, id)
	metrics.ObserveNetworkRequest("postgres", "post_delete", "posts", start, err)
	if err != nil {
		return fmt.Errorf("удаление поста: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MovePost реализует domain.PostRepo.
func (p *Postgres) MovePost(ctx context.Context, ownerID, id, toCollectionID string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE posts SET collection_id = $3
WHERE owner_id = $1 AND id = $2
`, ownerID, id, toCollectionID)
	metrics.ObserveNetworkRequest("postgres", "post_move", "posts", start, err)
	if err != nil {
		return fmt.Errorf("перенос поста: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LatestInCollection реализует domain.PostRepo.
func (p *Postgres) LatestInCollection(ctx context.Context, ownerID, collectionID string) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT `+postColumns+`
FROM posts
WHERE owner_id = $1 AND collection_id = $2
ORDER BY created_at DESC, id DESC
LIMIT 1
`, ownerID, collectionID)
	post, err := scanPost(row)
	metrics.ObserveNetworkRequest("postgres", "post_latest", "posts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("свежий пост: %w", err)
	}
	return post, nil
}

// SaveBookmark реализует domain.BookmarkRepo. Повторное сохранение
// перезаписывает снимок.
func (p *Postgres) SaveBookmark(ctx context.Context, b domain.Bookmark) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO bookmarks (user_id, owner_id, collection_id, name, description, image_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, owner_id, collection_id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	image_url = EXCLUDED.image_url
`, b.UserID, b.OwnerID, b.CollectionID, b.Name, b.Description, b.ImageURL, b.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "bookmark_upsert", "bookmarks", start, err)
	if err != nil {
		return fmt.Errorf("сохранение закладки: %w", err)
	}
	return nil
}

// DeleteBookmark реализует domain.BookmarkRepo.
func (p *Postgres) DeleteBookmark(ctx context.Context, userID, ownerID, collectionID string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
DELETE FROM bookmarks
WHERE user_id = $1 AND owner_id = $2 AND collection_id = $3
`, userID, ownerID, collectionID)
	metrics.ObserveNetworkRequest("postgres", "bookmark_delete", "bookmarks", start, err)
	if err != nil {
		return fmt.Errorf("удаление закладки: %w", err)
	}
	return nil
}

// ListBookmarks реализует domain.BookmarkRepo.
func (p *Postgres) ListBookmarks(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, owner_id, collection_id, name, description, image_url, created_at
FROM bookmarks
WHERE user_id = $1
ORDER BY created_at DESC
`, userID)
	metrics.ObserveNetworkRequest("postgres", "bookmark_list", "bookmarks", start, err)
	if err != nil {
		return nil, fmt.Errorf("закладки пользователя: %w", err)
	}
	defer rows.Close()

	var out []domain.Bookmark
	for rows.Next() {
		var b domain.Bookmark
		if err := rows.Scan(&b.UserID, &b.OwnerID, &b.CollectionID, &b.Name, &b.Description, &b.ImageURL, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
