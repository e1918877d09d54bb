package main

import (
	_ "time/tzdata"

	"etsy_backoffice/cmd"
)

// @title Etsy Back-Office API
// @version 1.0
// @description 店铺授权、商品与订单同步
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cmd.Execute()
}
