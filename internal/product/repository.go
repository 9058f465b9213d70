package product

import (
	"context"
	"database/sql"
	"errors"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Filter narrows List results. Zero values mean "no constraint"; MaxPrice
// of zero is treated as unbounded.
type Filter struct {
	Category string
	MinPrice float64
	MaxPrice float64
}

func (r *Repository) Create(ctx context.Context, sellerID int, req *CreateRequest) (*Product, error) {
	p := &Product{
		SellerID:  sellerID,
		Name:      req.Name,
		Details:   req.Details,
		Price:     req.Price,
		Condition: req.Condition,
		Category:  req.Category,
		ImagePath: req.ImagePath,
	}

	query := `
		INSERT INTO products (seller_id, name, details, price, condition, category, image_path)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		sellerID, req.Name, req.Details, req.Price, req.Condition, req.Category, req.ImagePath,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) List(ctx context.Context, f Filter) ([]*Product, error) {
	query := `
		SELECT p.id, p.seller_id, u.email, p.name, p.details, p.price,
		       p.condition, p.category, COALESCE(p.image_path, ''), p.created_at
		FROM products p
		JOIN users u ON p.seller_id = u.id
		WHERE ($1 = '' OR p.category = $1)
		  AND p.price >= $2
		  AND ($3 = 0 OR p.price <= $3)
		ORDER BY p.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, f.Category, f.MinPrice, f.MaxPrice)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p := &Product{}
		if err := rows.Scan(&p.ID, &p.SellerID, &p.SellerEmail, &p.Name, &p.Details,
			&p.Price, &p.Condition, &p.Category, &p.ImagePath, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, id int) (*Product, error) {
	p := &Product{}
	query := `
		SELECT p.id, p.seller_id, u.email, p.name, p.details, p.price,
		       p.condition, p.category, COALESCE(p.image_path, ''), p.created_at
		FROM products p
		JOIN users u ON p.seller_id = u.id
		WHERE p.id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.SellerID, &p.SellerEmail, &p.Name, &p.Details,
			&p.Price, &p.Condition, &p.Category, &p.ImagePath, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}
