package cases

import "time"

// MonitoredCase mapea el docket externo (CourtListener/PACER) a nuestro
// case ID interno. Nunca se borra: cuando nadie lo monitorea solo sale
// del set activo del poller.
type MonitoredCase struct {
	ID string

	// DocketID es el identificador del expediente en el sistema judicial externo.
	DocketID string
	CourtID  string

	Name string

	CreatedAt time.Time

	// LastFetchedAt: última vez que el poller trajo documentos del docket.
	LastFetchedAt *time.Time
}
