package httpserver

import "sync"

// ipConnLimiter caps concurrent live feed connections per client IP. The hub enforces the
// instance-wide cap.
type ipConnLimiter struct {
	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func newIPConnLimiter(maxPer int) *ipConnLimiter {
	return &ipConnLimiter{ips: make(map[string]int), maxPer: maxPer}
}

func (l *ipConnLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *ipConnLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.ips[ip]; count > 1 {
		l.ips[ip] = count - 1
	} else {
		delete(l.ips, ip)
	}
}

func (l *ipConnLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ips[ip]
}
