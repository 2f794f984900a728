package service

// WeightedAverage is a fixed-window weighted moving average. The weight of a
// new sample is 1/n where n grows until it saturates at the window size, so
// early samples converge fast and steady state behaves like a smoothing
// filter. Min/max/count are tracked over the whole episode, not the window.
type WeightedAverage struct {
	size  int
	count int
	avg   float64
	min   float64
	max   float64
	last  float64
}

func NewWeightedAverage(size int) *WeightedAverage {
	if size < 1 {
		size = 1
	}
	return &WeightedAverage{size: size}
}

func (w *WeightedAverage) Add(value float64) {
	if w.count == 0 {
		w.count = 1
		w.avg = value
		w.min = value
		w.max = value
		w.last = value
		return
	}
	if w.count < w.size {
		w.count++
	}
	w.avg = (w.avg*float64(w.count-1) + value) / float64(w.count)
	if value < w.min {
		w.min = value
	}
	if value > w.max {
		w.max = value
	}
	w.last = value
}

func (w *WeightedAverage) Average() float64 {
	return w.avg
}

func (w *WeightedAverage) Min() float64 {
	return w.min
}

func (w *WeightedAverage) Max() float64 {
	return w.max
}

func (w *WeightedAverage) Last() float64 {
	return w.last
}

func (w *WeightedAverage) Count() int {
	return w.count
}

func (w *WeightedAverage) Reset() {
	w.count = 0
	w.avg = 0
	w.min = 0
	w.max = 0
	w.last = 0
}
