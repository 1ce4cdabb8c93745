package util

const DriverSQLite = "sqlite"

// 门控相关常量
const (
	GatingNamespaceQualifier = ".gating"
	DefaultMinScore          = 100
)
