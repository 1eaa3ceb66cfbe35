// Package job holds ready-made computations for the runtime: a sleeper, a UDP
// echo responder and a pinger. Wrap them with sched.Eff to spawn them.
package job

import (
	"bytes"
	"net/netip"
	"strconv"
	"time"

	"code.hybscloud.com/kont"

	"sairun/internal/sleep"
	"sairun/internal/udp"
)

// Reply is one answered ping.
type Reply struct {
	Seq     int
	Payload []byte
	RTT     time.Duration // virtual time between send and receive
}

// Sleep returns a computation that just sleeps for d.
func Sleep(d time.Duration) kont.Eff[struct{}] {
	return sleep.For(d)
}

// Echo answers n datagrams received on local, each with its own payload and
// to its own sender, then finishes. n <= 0 means forever.
func Echo(local netip.AddrPort, n int) kont.Eff[struct{}] {
	return repeat(0, n, func(int) kont.Eff[struct{}] {
		return kont.Bind(udp.Recv(local), func(m udp.Message) kont.Eff[struct{}] {
			return udp.SendTo(local, m.Remote, m.Payload)
		})
	})
}

// Ping sends count pings from local to remote, one at a time. Each waits for
// the reply from remote, reports it to onReply (which may be nil) and then
// sleeps for interval before the next ping.
func Ping(local, remote netip.AddrPort, count int, interval time.Duration, onReply func(Reply)) kont.Eff[struct{}] {
	return repeat(0, count, func(seq int) kont.Eff[struct{}] {
		return kont.Bind(sleep.Now(), func(sent time.Time) kont.Eff[struct{}] {
			return kont.Then(
				udp.SendTo(local, remote, PingPayload(seq)),
				kont.Bind(udp.RecvFrom(local, remote), func(payload []byte) kont.Eff[struct{}] {
					return kont.Bind(sleep.Now(), func(received time.Time) kont.Eff[struct{}] {
						if onReply != nil {
							onReply(Reply{Seq: seq, Payload: payload, RTT: received.Sub(sent)})
						}
						if seq == count-1 {
							return kont.Pure(struct{}{})
						}
						return sleep.For(interval)
					})
				}),
			)
		})
	})
}

// PingPayload is the payload Ping sends for seq.
func PingPayload(seq int) []byte {
	return []byte("ping " + strconv.Itoa(seq))
}

// IsPing reports whether payload was produced by PingPayload.
func IsPing(payload []byte) bool {
	return bytes.HasPrefix(payload, []byte("ping "))
}

// repeat runs body(i) for i in [from, n), or forever when n <= 0.
func repeat(from, n int, body func(i int) kont.Eff[struct{}]) kont.Eff[struct{}] {
	if n > 0 && from >= n {
		return kont.Pure(struct{}{})
	}
	return kont.Bind(body(from), func(struct{}) kont.Eff[struct{}] {
		return repeat(from+1, n, body)
	})
}
