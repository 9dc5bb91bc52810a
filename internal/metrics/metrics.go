// Package metrics는 헤지 엔진의 Prometheus 지표를 정의합니다.
//
//   - hedger_ticks_total{result}            틱 결과 (ok|too_early|error)
//   - hedger_transitions_total{kind,side}   상태 전이 (first_trigger|final_stop|final_target|forced_exit)
//   - hedger_entries_total{result}          진입 판단 (opened|no_signal|no_capacity|skipped|failed)
//   - hedger_capital                        계정 가용 자본
//   - hedger_open_pairs                     열린 헤지 쌍 수
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics는 엔진이 갱신하는 지표 묶음입니다
type Metrics struct {
	registry *prometheus.Registry

	ticks       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	entries     *prometheus.CounterVec
	capital     prometheus.Gauge
	openPairs   prometheus.Gauge
}

// New는 독립 레지스트리에 지표를 등록합니다
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hedger_ticks_total",
				Help: "Ticks by result",
			},
			[]string{"result"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hedger_transitions_total",
				Help: "Lifecycle transitions by kind and leg side",
			},
			[]string{"kind", "side"},
		),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hedger_entries_total",
				Help: "Entry decisions by result",
			},
			[]string{"result"},
		),
		capital: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hedger_capital",
				Help: "Account capital not committed to open positions",
			},
		),
		openPairs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hedger_open_pairs",
				Help: "Number of occupied slots",
			},
		),
	}
	m.registry.MustRegister(m.ticks, m.transitions, m.entries, m.capital, m.openPairs)
	return m
}

// Handler는 /metrics 응답 핸들러를 반환합니다
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry는 테스트와 추가 수집기 등록을 위한 레지스트리입니다
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveTick(result string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTransition(kind, side string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind, side).Inc()
}

func (m *Metrics) ObserveEntry(result string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(result).Inc()
}

// SetAccount는 자본과 열린 쌍 수 게이지를 갱신합니다
func (m *Metrics) SetAccount(capital float64, openPairs int) {
	if m == nil {
		return
	}
	m.capital.Set(capital)
	m.openPairs.Set(float64(openPairs))
}
