package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// jsonFloat encodes NaN and the infinities as the strings "NaN", "+Inf" and
// "-Inf" so raw readings survive the WAL and the wire unchanged. Finite
// values stay plain JSON numbers.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return fmt.Errorf("float: %w", err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("float: %w", err)
		}
		*f = jsonFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

type sensorReadingJSON struct {
	Timestamp       int64     `json:"timestamp"`
	Temperature     jsonFloat `json:"temperature"`
	VibrationLevel  jsonFloat `json:"vibration_level"`
	CrackWidth      jsonFloat `json:"crack_width"`
	TiltAngle       jsonFloat `json:"tilt_angle"`
	SeismicActivity jsonFloat `json:"seismic_activity"`
	MoistureLevel   jsonFloat `json:"moisture_level"`
}

func (r SensorReading) MarshalJSON() ([]byte, error) {
	return json.Marshal(sensorReadingJSON{
		Timestamp:       r.Timestamp,
		Temperature:     jsonFloat(r.Temperature),
		VibrationLevel:  jsonFloat(r.VibrationLevel),
		CrackWidth:      jsonFloat(r.CrackWidth),
		TiltAngle:       jsonFloat(r.TiltAngle),
		SeismicActivity: jsonFloat(r.SeismicActivity),
		MoistureLevel:   jsonFloat(r.MoistureLevel),
	})
}

func (r *SensorReading) UnmarshalJSON(b []byte) error {
	aux := sensorReadingJSON{
		Timestamp:       r.Timestamp,
		Temperature:     jsonFloat(r.Temperature),
		VibrationLevel:  jsonFloat(r.VibrationLevel),
		CrackWidth:      jsonFloat(r.CrackWidth),
		TiltAngle:       jsonFloat(r.TiltAngle),
		SeismicActivity: jsonFloat(r.SeismicActivity),
		MoistureLevel:   jsonFloat(r.MoistureLevel),
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = SensorReading{
		Timestamp:       aux.Timestamp,
		Temperature:     float64(aux.Temperature),
		VibrationLevel:  float64(aux.VibrationLevel),
		CrackWidth:      float64(aux.CrackWidth),
		TiltAngle:       float64(aux.TiltAngle),
		SeismicActivity: float64(aux.SeismicActivity),
		MoistureLevel:   float64(aux.MoistureLevel),
	}
	return nil
}

func (f Frame) MarshalJSON() ([]byte, error) {
	type plain Frame
	return json.Marshal(struct {
		plain
		MotionScore jsonFloat `json:"motion_score"`
	}{plain(f), jsonFloat(f.MotionScore)})
}

func (f *Frame) UnmarshalJSON(b []byte) error {
	type plain Frame
	aux := struct {
		*plain
		MotionScore jsonFloat `json:"motion_score"`
	}{plain: (*plain)(f), MotionScore: jsonFloat(f.MotionScore)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	f.MotionScore = float64(aux.MotionScore)
	return nil
}

func (s ScoredFrame) MarshalJSON() ([]byte, error) {
	type plain ScoredFrame
	return json.Marshal(struct {
		plain
		MotionScore jsonFloat `json:"motion_score"`
	}{plain(s), jsonFloat(s.MotionScore)})
}

func (s *ScoredFrame) UnmarshalJSON(b []byte) error {
	type plain ScoredFrame
	aux := struct {
		*plain
		MotionScore jsonFloat `json:"motion_score"`
	}{plain: (*plain)(s), MotionScore: jsonFloat(s.MotionScore)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.MotionScore = float64(aux.MotionScore)
	return nil
}
