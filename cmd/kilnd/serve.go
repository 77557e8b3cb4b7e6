package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kiln_controller/internal/actuator"
	"kiln_controller/internal/config"
	"kiln_controller/internal/controller"
	"kiln_controller/internal/engine"
	"kiln_controller/internal/gpio"
	"kiln_controller/internal/handlers"
	"kiln_controller/internal/logger"
	"kiln_controller/internal/metrics"
	"kiln_controller/internal/mqtt"
	"kiln_controller/internal/pid"
	"kiln_controller/internal/safety"
	"kiln_controller/internal/server"
	"kiln_controller/internal/service"
	"kiln_controller/internal/simulator"
	"kiln_controller/internal/thermocouple"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control loop and the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// plant is the sensor and outputs the loop drives.
type plant struct {
	sensor  thermocouple.Sensor
	relay   gpio.Output
	alarm   gpio.Output
	closers []io.Closer
}

func (p *plant) close(log *logger.Logger) {
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			log.Errorw("hardware_close_failed", "error", err)
		}
	}
}

// openPlant wires the simulator or the real bridge and GPIO lines.
func openPlant(infra config.Infra, log *logger.Logger) (*plant, error) {
	if infra.Simulate {
		kiln := simulator.NewKiln(simulator.Params{}, nil)
		log.Infow("simulator_enabled", "ambient_c", simulator.AmbientC)
		return &plant{sensor: kiln, relay: kiln, alarm: gpio.Nop{}}, nil
	}

	p := &plant{}
	bridge, err := thermocouple.NewSerialBridge(infra.SerialPort, infra.SerialBaud)
	if err != nil {
		return nil, err
	}
	p.sensor = bridge
	p.closers = append(p.closers, bridge)

	// The actuator releases both pins when the loop stops; the closers only
	// cover an exit before the loop has run.
	relay, err := gpio.NewRealOutput(infra.GPIOChip, infra.RelayPin, infra.RelayActiveLow)
	if err != nil {
		p.close(log)
		return nil, fmt.Errorf("relay pin %d: %w", infra.RelayPin, err)
	}
	p.relay = gpio.CloseOnce(relay)
	p.closers = append(p.closers, p.relay)

	alarm, err := gpio.NewRealOutput(infra.GPIOChip, infra.AlarmPin, false)
	if err != nil {
		p.close(log)
		return nil, fmt.Errorf("alarm pin %d: %w", infra.AlarmPin, err)
	}
	p.alarm = gpio.CloseOnce(alarm)
	p.closers = append(p.closers, p.alarm)
	return p, nil
}

// openPublisher connects to the broker, or returns a no-op publisher when
// none is configured or it cannot be reached.
func openPublisher(infra config.Infra, log *logger.Logger) mqtt.Publisher {
	if infra.MQTTBroker == "" {
		return mqtt.Nop{}
	}
	pub, err := mqtt.NewRealPublisher(infra.MQTTBroker, infra.MQTTClientID, log)
	if err != nil {
		log.Errorw("mqtt_disabled", "broker", infra.MQTTBroker, "error", err)
		return mqtt.Nop{}
	}
	log.Infow("mqtt_connected", "broker", infra.MQTTBroker)
	return pub
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, ctrl, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.Get(cfg.Infra.LogLevel)

	repos, conn, err := openRepos(cfg.Infra.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	hw, err := openPlant(cfg.Infra, log)
	if err != nil {
		return err
	}
	defer hw.close(log)

	pub := openPublisher(cfg.Infra, log)
	defer func() { _ = pub.Close() }()

	// control components
	pidCtl, err := pid.New(ctrl.PID)
	if err != nil {
		return err
	}
	act, err := actuator.New(ctrl.Actuator, hw.relay, hw.alarm)
	if err != nil {
		return err
	}
	readerCfg := ctrl.Reader
	if cfg.Infra.HousingProbe {
		readerCfg.Channels = []thermocouple.Channel{thermocouple.ChannelA, thermocouple.ChannelB}
	}
	eng := engine.New(ctrl.Engine)
	m := metrics.New()

	ctl, err := controller.New(controller.Deps{
		Engine:    eng,
		Reader:    thermocouple.NewReader(hw.sensor, readerCfg),
		Monitor:   safety.NewMonitor(ctrl.Safety),
		PID:       pidCtl,
		Actuator:  act,
		States:    repos.StateRepo,
		Events:    repos.EventRepo,
		Publisher: pub,
		Metrics:   m,
		Log:       log,
		LogWindow: ctrl.LogWindow,
	})
	if err != nil {
		return err
	}

	// wire services
	services := service.NewService(repos, service.Deps{
		Commands: eng,
		Console:  ctl,
		MaxTempC: ctrl.Safety.MaxTempC,
		Auth:     service.AuthConfig{SigningKey: cfg.Infra.SigningKey, TokenTTL: cfg.Infra.TokenTTL},
	})
	created, err := services.EnsureOperator(ctrl.AuthUser, ctrl.AuthPass)
	if err != nil {
		return fmt.Errorf("seed operator: %w", err)
	}
	if created {
		log.Infow("operator_created", "username", ctrl.AuthUser)
	}
	if cfg.Infra.SigningKey == "" {
		log.Warnw("auth.signing_key not set; tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interrupted, err := services.CheckInterrupted(ctx)
	if err != nil {
		log.Errorw("interrupted_run_check_failed", "error", err)
	} else if interrupted != nil {
		log.Warnw("run_interrupted", "run_id", interrupted.RunID, "program", interrupted.ProgramName, "state", interrupted.State)
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		ctl.Run(ctx, cfg.Infra.Tick)
	}()

	apiHandler := handlers.NewHandler(services, log, m.Handler())
	srv := server.New(server.Config{Port: cfg.Infra.Port}, apiHandler.InitRoutes())
	log.Infow("http_listening", "addr", srv.Addr())

	err = srv.Run(ctx)
	if err != nil {
		log.Errorw("http_server_failed", "error", err)
	}
	log.Infow("shutting down...")
	stop()
	<-loopDone
	return err
}
