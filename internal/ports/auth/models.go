package auth

// Claims es la información que extraemos del token verificado.
// Email se usa como destino de los avisos por correo.
type Claims struct {
	UserID string
	Email  string
	FirmID string
}
