package slots

// SampleRequest is the reference working day: five busy periods between
// 09:00 and 21:00, split into 30 minute slots.
func SampleRequest() Request {
	return Request{
		Busy: []Span{
			{Start: "10:30", Stop: "10:50"},
			{Start: "18:40", Stop: "18:50"},
			{Start: "14:40", Stop: "15:50"},
			{Start: "16:40", Stop: "17:20"},
			{Start: "20:05", Stop: "20:20"},
		},
		StartTime: "09:00",
		StopTime:  "21:00",
		Duration:  30,
	}
}
