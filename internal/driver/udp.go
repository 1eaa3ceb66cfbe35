package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfq"

	"sairun/internal/logging"
	"sairun/internal/sched"
)

const (
	// rxCapacity bounds each socket's handoff queue to the driver loop.
	rxCapacity = 256
	// maxDatagram is the largest UDP payload.
	maxDatagram = 65535
)

// UDP drives a Runtime with real sockets and the wall clock.
//
// Each bound socket has a reader goroutine that hands datagrams to the loop
// over a single-producer single-consumer queue; the Runtime itself is only
// ever touched by the goroutine calling Run.
type UDP struct {
	rt      *sched.Runtime
	tick    time.Duration
	logger  *slog.Logger
	socks   []*socket
	byAddr  map[netip.AddrPort]*socket
	dropped atomix.Uint32
}

type socket struct {
	local netip.AddrPort
	conn  *net.UDPConn
	rx    lfq.SPSC[sched.Datagram]
}

// NewUDP creates a driver that wakes every tick to feed input and fire
// timeouts. A nil logger discards all output.
func NewUDP(rt *sched.Runtime, tick time.Duration, logger *slog.Logger) *UDP {
	if logger == nil {
		logger = logging.Discard()
	}
	return &UDP{
		rt:     rt,
		tick:   tick,
		logger: logger,
		byAddr: make(map[netip.AddrPort]*socket),
	}
}

// Bind opens a UDP socket on addr and returns the address tasks must use as
// their local address. A zero port is replaced by the one the OS picked.
func (u *UDP) Bind(addr netip.AddrPort) (netip.AddrPort, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("bind %s: %w", addr, err)
	}
	local := addr
	if addr.Port() == 0 {
		local = netip.AddrPortFrom(addr.Addr(), uint16(conn.LocalAddr().(*net.UDPAddr).Port))
	}
	s := &socket{local: local, conn: conn}
	s.rx.Init(rxCapacity)
	u.socks = append(u.socks, s)
	u.byAddr[local] = s
	u.logger.Info("bound", slog.String("local", local.String()))
	return local, nil
}

// Dropped returns how many received datagrams were lost because the loop
// fell behind the readers.
func (u *UDP) Dropped() uint32 {
	return u.dropped.Load()
}

// Run drives the runtime until every task finished or ctx is done. It closes
// all sockets before returning.
func (u *UDP) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, s := range u.socks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.read(s)
		}()
	}

	clock := NewTickClock(1)
	clock.Start(u.tick)
	defer func() {
		clock.Stop()
		for _, s := range u.socks {
			s.conn.Close()
		}
		wg.Wait()
	}()

	u.flush()
	for !u.rt.IsFinished() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.Ch:
		}

		now := time.Now()
		u.drain(now)
		if deadline, ok := u.rt.PollTimeout(); ok && !now.Before(deadline) {
			u.rt.HandleTimeout(now)
		}
		u.flush()
	}
	return nil
}

// read runs on its own goroutine and only touches s.rx and the drop counter.
func (u *UDP) read(s *socket) {
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			u.logger.Warn("read failed", slog.String("local", s.local.String()), slog.Any("error", err))
			continue
		}
		d := sched.Datagram{
			Local:   s.local,
			Remote:  netip.AddrPortFrom(from.Addr().Unmap(), from.Port()),
			Payload: bytes.Clone(buf[:n]),
		}
		if err := s.rx.Enqueue(&d); err != nil {
			u.dropped.Add(1)
		}
	}
}

func (u *UDP) drain(now time.Time) {
	for _, s := range u.socks {
		for {
			d, err := s.rx.Dequeue()
			if err != nil {
				break
			}
			u.rt.HandleInput(d.Local, d.Remote, d.Payload, now)
		}
	}
}

func (u *UDP) flush() {
	for {
		d, ok := u.rt.PollDatagram()
		if !ok {
			return
		}
		s, ok := u.byAddr[d.Local]
		if !ok {
			u.logger.Warn("no socket bound for outgoing datagram", slog.String("local", d.Local.String()))
			continue
		}
		if _, err := s.conn.WriteToUDPAddrPort(d.Payload, d.Remote); err != nil {
			u.logger.Warn("send failed",
				slog.String("local", d.Local.String()),
				slog.String("remote", d.Remote.String()),
				slog.Any("error", err))
		}
	}
}
