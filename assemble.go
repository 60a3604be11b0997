package fitlog

// assemble composes the final record. Elevation is derived from the altitude
// series only for whichever total the session did not report.
func (st *foldState) assemble(filename, hash string) *ParsedWorkout {
	gain, loss := st.gain.val, st.loss.val
	if gain == nil || loss == nil {
		dg, dl := ElevationChanges(st.altitudes)
		if gain == nil {
			gain = dg
		}
		if loss == nil {
			loss = dl
		}
	}

	return &ParsedWorkout{
		FileHash:            hash,
		Filename:            filename,
		WorkoutType:         st.workoutType.val,
		StartTime:           st.startTime.val,
		EndTime:             st.endTime.val,
		DurationSeconds:     st.duration.val,
		DistanceMeters:      st.distance.val,
		TotalCalories:       st.calories.val,
		AvgHeartRate:        st.avgHR.val,
		MaxHeartRate:        st.maxHR.val,
		AvgPowerWatts:       st.avgPower.val,
		MaxPowerWatts:       st.maxPower.val,
		AvgCadence:          st.avgCadence.val,
		MaxCadence:          st.maxCadence.val,
		AvgSpeedMPS:         st.avgSpeed.val,
		MaxSpeedMPS:         st.maxSpeed.val,
		ElevationGainMeters: gain,
		ElevationLossMeters: loss,
		GPSData:             st.gps,
		SensorData:          st.sensors,
		ChartData:           BuildChart(st.sensors),
	}
}
