package router

import "github.com/gin-gonic/gin"

// Registrar is implemented by each module's Router to mount its routes.
type Registrar interface{ Register(r *gin.Engine) }

var registrars []Registrar

func Register(rs ...Registrar) { registrars = append(registrars, rs...) }

func MountAll(r *gin.Engine) {
	for _, rg := range registrars {
		rg.Register(r)
	}
}
