package jwt

import (
	"strings"

	"ShopSage/pkg/back"
	"ShopSage/pkg/util/myjwt"
	"ShopSage/pkg/xerr"

	"github.com/gin-gonic/gin"
)

func Auth(signer *myjwt.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if signer == nil {
			back.Error(c, xerr.Forbidden, "admin api disabled")
			c.Abort()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			back.Error(c, xerr.Unauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := signer.ParseToken(tokenString)
		if err != nil {
			back.Error(c, xerr.Unauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set("operator", claims.Operator)
		c.Set("role", claims.Role)
		c.Next()
	}
}
