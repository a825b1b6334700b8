package docket

import (
	"context"
	"time"
)

// Document es un documento nuevo detectado en un docket.
type Document struct {
	ID          string
	Description string
	DateFiled   time.Time
	URL         string
}

// Update agrupa los documentos nuevos de un docket en un ciclo de polling.
type Update struct {
	DocketID  string
	Documents []Document
}

// Poller es el colaborador externo que consulta el sistema judicial.
// Mantiene en memoria el set de dockets activos; ese set es efímero
// (arranca vacío tras un restart) y lo reconstruye el reconciler.
type Poller interface {
	// Monitor agrega el docket al set activo. Idempotente del lado del
	// poller, pero el caller igual chequea IsMonitored antes para no
	// gastar llamadas externas.
	Monitor(ctx context.Context, docketID string) error

	IsMonitored(docketID string) bool

	// Forget saca el docket del set activo (quiesce, no borra nada).
	Forget(docketID string)

	// FetchUpdates trae en una sola pasada los documentos nuevos de todos
	// los dockets monitoreados desde el último fetch.
	FetchUpdates(ctx context.Context) ([]Update, error)
}
