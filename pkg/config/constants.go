package config

// EnvPrefix is empty because every field carries a fully-qualified env tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "CRAFTMART_DB_DSN"
	EnvDBHost = "CRAFTMART_DB_HOST"
	EnvDBUser = "CRAFTMART_DB_USER"
	EnvDBName = "CRAFTMART_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

// Carrier provider keys understood by the shipping registry.
const (
	CarrierShiprocket = "shiprocket"
	CarrierDelhivery  = "delhivery"
)
