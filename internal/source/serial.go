package source

import (
	"bufio"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/motion_cube/internal/motion"
	"github.com/relabs-tech/motion_cube/internal/quat"
)

// SerialSource reads attitude ($PRDID) sentences from a serial-attached
// AHRS unit and converts them into motion samples. The device paces
// itself, so the rate hint passed to Subscribe is ignored.
//
// PRDID carries pitch/roll/heading only; linear acceleration is
// reported as zero, which keeps the cube orientation live while
// position stays put.
type SerialSource struct {
	portName string
	baudRate uint

	mu   sync.Mutex
	last quat.Quaternion
	seen bool
}

// NewSerialSource creates a source for the given port, e.g.
// /dev/ttyUSB0 at 115200 baud.
func NewSerialSource(portName string, baudRate uint) *SerialSource {
	return &SerialSource{portName: portName, baudRate: baudRate}
}

// Available reports whether the serial device node exists. The port is
// only opened on Subscribe so that Available stays side-effect free.
func (s *SerialSource) Available() bool {
	_, err := os.Stat(s.portName)
	return err == nil
}

// CurrentOrientation returns the last parsed attitude.
func (s *SerialSource) CurrentOrientation() (quat.Quaternion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.seen
}

// Subscribe opens the port and starts the read loop.
func (s *SerialSource) Subscribe(_ float64, fn Callback) (Subscription, error) {
	opts := serial.OpenOptions{
		PortName:        s.portName,
		BaudRate:        s.baudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial source: open %s: %w", s.portName, err)
	}
	log.Printf("serial source: port %s opened at %d baud", s.portName, s.baudRate)

	sub := &serialSubscription{port: port, stop: make(chan struct{})}
	sub.wg.Add(1)

	go func() {
		defer sub.wg.Done()
		reader := bufio.NewReader(port)
		start := time.Now()

		for {
			select {
			case <-sub.stop:
				return
			default:
			}

			line, err := reader.ReadString('\n')
			if err != nil {
				select {
				case <-sub.stop:
					// Read failure caused by our own Close; not an error.
					return
				default:
				}
				fn(motion.Sample{}, fmt.Errorf("serial source: read: %w", err))
				return
			}

			q, ok := attitudeFromLine(line)
			if !ok {
				continue
			}

			s.mu.Lock()
			s.last = q
			s.seen = true
			s.mu.Unlock()

			fn(motion.Sample{
				Timestamp:   time.Since(start).Seconds(),
				Orientation: q,
			}, nil)
		}
	}()

	return sub, nil
}

// attitudeFromLine parses one raw line from the port. Anything that is
// not a well-formed $PRDID sentence is reported as not ok; a noisy link
// or a partial sentence is expected, not an error.
func attitudeFromLine(line string) (quat.Quaternion, bool) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return quat.Quaternion{}, false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return quat.Quaternion{}, false
	}
	if sentence.DataType() != nmea.TypePRDID {
		return quat.Quaternion{}, false
	}
	m := sentence.(nmea.PRDID)

	q := quat.FromEuler(
		m.Heading*math.Pi/180,
		m.Pitch*math.Pi/180,
		m.Roll*math.Pi/180,
	)
	return q, true
}

type serialSubscription struct {
	port interface{ Close() error }
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Cancel closes the port to unblock the reader, then waits for the
// read loop to exit so no callback outlives it.
func (s *serialSubscription) Cancel() {
	s.once.Do(func() {
		close(s.stop)
		if err := s.port.Close(); err != nil {
			log.Printf("serial source: close: %v", err)
		}
	})
	s.wg.Wait()
}
