//go:build js

package pipeline

import (
	"errors"

	"github.com/lucasjlepore/fitlog"
)

func marshalSensorParquet([]fitlog.SensorPoint) ([]byte, error) {
	return nil, errors.New("parquet export is not available in browser builds; use csv")
}
