package controller

import (
	"github.com/gin-gonic/gin"

	"hiring-gateway/internal/security"
)

// Controllers groups every HTTP handler of the gateway
type Controllers struct {
	Ingest    *IngestController
	Backup    *BackupController
	Report    *ReportController
	Operation *OperationController
	Health    *HealthController
}

// Register mounts the routes. Mutating admin routes need the operator role,
// the remaining data routes any authenticated caller.
func (cs *Controllers) Register(r gin.IRouter, auth *security.AuthMiddleware) {
	r.GET("/health", cs.Health.HealthCheck)

	operator := r.Group("/", auth.RequireAnyRole(security.RoleOperator))
	{
		operator.POST("/load/:table", cs.Ingest.LoadTable)
		operator.POST("/load_all", cs.Ingest.LoadAll)
		operator.POST("/backup/:table", cs.Backup.Backup)
		operator.POST("/restore/:table", cs.Backup.Restore)
	}

	authenticated := r.Group("/", auth.RequireAnyRole())
	{
		authenticated.POST("/insert/:table", cs.Ingest.Insert)
		authenticated.GET("/backups/:table", cs.Backup.ListBackups)
		authenticated.GET("/hires_by_quarter/:year", cs.Report.HiresByQuarter)
		authenticated.GET("/avg_plus_hires_by_department/:year", cs.Report.DepartmentsAboveMean)
		authenticated.GET("/operations", cs.Operation.ListOperations)
		authenticated.GET("/operations/stats", cs.Operation.GetOperationStats)
		authenticated.GET("/operations/:id", cs.Operation.GetOperation)
	}
}
