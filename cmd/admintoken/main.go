package main

import (
	"fmt"
	"os"

	"ShopSage/internal/config"
	"ShopSage/pkg/util/myjwt"
	"ShopSage/pkg/zlog"

	"go.uber.org/zap"
)

// 签发管理接口使用的 Bearer token：admintoken <operator>
func main() {
	conf := config.GetConfig()
	operator := "ops"
	if len(os.Args) > 1 && os.Args[1] != "" {
		operator = os.Args[1]
	}
	signer, err := myjwt.NewSigner(conf.JwtConfig.Key, conf.JwtConfig.Issuer, conf.JwtConfig.ExpireHours)
	if err != nil {
		zlog.Fatal("jwtConfig.key is required", zap.Error(err))
	}
	token, err := signer.GenerateToken(operator, "admin")
	if err != nil {
		zlog.Fatal("sign token failed", zap.Error(err))
	}
	fmt.Println(token)
}
