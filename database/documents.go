package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/reportrag/helper"
	"github.com/siherrmann/reportrag/model"
	loadSql "github.com/siherrmann/reportrag/sql"
)

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	InsertDocument(ctx context.Context, doc *model.Document) error
	SelectDocument(ctx context.Context, rid uuid.UUID) (*model.Document, error)
	SelectAllDocuments(ctx context.Context, lastCreatedAt *time.Time, limit int) ([]*model.Document, error)
	SelectDocumentsByRegion(ctx context.Context, region model.Region) ([]*model.Document, error)
	SelectDocumentsBySearch(ctx context.Context, searchTerm string, limit int) ([]*model.Document, error)
	UpdateDocument(ctx context.Context, doc *model.Document) error
	DeleteDocument(ctx context.Context, rid uuid.UUID) error
}

// DocumentsDBHandler handles document-related database operations
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db: db,
	}

	err := loadSql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents();`)
	if err != nil {
		log.Panicf("error initializing documents table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

// InsertDocument inserts a new document
func (h *DocumentsDBHandler) InsertDocument(ctx context.Context, doc *model.Document) error {
	if doc.Metadata == nil {
		doc.Metadata = model.Metadata{}
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_document($1, $2, $3, $4)`,
		doc.Title,
		doc.Source,
		string(doc.Region),
		doc.Metadata,
	)

	err := scanDocument(row, doc)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectDocument retrieves a document by RID
func (h *DocumentsDBHandler) SelectDocument(ctx context.Context, rid uuid.UUID) (*model.Document, error) {
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_document($1)`, rid)

	doc := &model.Document{}
	err := scanDocument(row, doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError(fmt.Sprintf("select document %s", rid), err)
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return doc, nil
}

// SelectAllDocuments retrieves all documents with pagination, newest first
func (h *DocumentsDBHandler) SelectAllDocuments(ctx context.Context, lastCreatedAt *time.Time, limit int) ([]*model.Document, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_all_documents($1, $2)`, lastCreatedAt, limit)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanDocuments(rows)
}

// SelectDocumentsByRegion retrieves all reports of a region
func (h *DocumentsDBHandler) SelectDocumentsByRegion(ctx context.Context, region model.Region) ([]*model.Document, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_documents_by_region($1)`, string(region))
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanDocuments(rows)
}

// SelectDocumentsBySearch searches documents by title or source
func (h *DocumentsDBHandler) SelectDocumentsBySearch(ctx context.Context, searchTerm string, limit int) ([]*model.Document, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM search_documents($1, $2)`, searchTerm, limit)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanDocuments(rows)
}

// UpdateDocument updates a document
func (h *DocumentsDBHandler) UpdateDocument(ctx context.Context, doc *model.Document) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM update_document($1, $2, $3, $4, $5)`,
		doc.RID,
		doc.Title,
		doc.Source,
		string(doc.Region),
		doc.Metadata,
	)

	err := scanDocument(row, doc)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteDocument deletes a document by RID, its chunks are removed with it
func (h *DocumentsDBHandler) DeleteDocument(ctx context.Context, rid uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_document($1)`, rid)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanDocument(row scanner, doc *model.Document) error {
	var region string
	err := row.Scan(
		&doc.ID,
		&doc.RID,
		&doc.Title,
		&doc.Source,
		&region,
		&doc.Metadata,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	doc.Region = model.Region(region)
	return nil
}

func scanDocuments(rows *sql.Rows) ([]*model.Document, error) {
	defer rows.Close()

	documents := []*model.Document{}
	for rows.Next() {
		doc := &model.Document{}
		err := scanDocument(rows, doc)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		documents = append(documents, doc)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return documents, nil
}
