package bootstrap

import "github.com/okian/assay/pkg/logger"

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}
