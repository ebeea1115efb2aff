package syncengine

import "fmt"

const (
	StatusLoading  = "loading"
	StatusLive     = "live"
	StatusSleeping = "sleeping"
)

func catchingUp(physicsDtMs int64) string {
	return fmt.Sprintf("catching up %.3f sec", float64(physicsDtMs)/1000)
}
