package config

import (
	"fmt"
	"time"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
)

type (
	// luaFile mirrors Config with the types a Lua table can express,
	// durations are written as strings like "30m".
	luaFile struct {
		Bind           *string
		Database       *string
		SessionBackend *string
		RedisAddr      *string
		RedisPrefix    *string
		CookieName     *string
		InsecureCookie *bool
		IdleTimeout    *string
		SweepInterval  *string
		Argon2         *luaArgon2
		HashWorkers    *int
		LogLevel       *string
		LogPretty      *bool
	}

	luaArgon2 struct {
		Memory      *uint32
		Time        *uint32
		Parallelism *uint8
	}
)

// newSandbox returns a state with only the base, table and string libs,
// config files cannot load modules or touch the filesystem through io/os.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, pair := range []struct {
		n string
		f lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(pair.f),
			NRet:    0,
			Protect: true,
		}, lua.LString(pair.n)); err != nil {
			panic(err)
		}
	}
	for _, unsafe := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(unsafe, lua.LNil)
	}
	return L
}

// LoadFile runs the Lua file at path and copies the fields of the table
// it returns into cfg. Fields absent from the table keep their value.
//
//	return {
//	  bind = "0.0.0.0:8080",
//	  session_backend = "redis",
//	  idle_timeout = "1h",
//	  argon2 = { memory = 65536 },
//	}
func LoadFile(path string, cfg *Config) error {
	L := newSandbox()
	defer L.Close()
	fn, err := L.LoadFile(path)
	if err != nil {
		return fmt.Errorf("config: unable to load %v, cause %w", path, err)
	}
	return apply(L, fn, path, cfg)
}

// LoadString works like LoadFile on an in-memory chunk.
func LoadString(code string, cfg *Config) error {
	L := newSandbox()
	defer L.Close()
	fn, err := L.LoadString(code)
	if err != nil {
		return fmt.Errorf("config: unable to parse chunk, cause %w", err)
	}
	return apply(L, fn, "<string>", cfg)
}

func apply(L *lua.LState, fn *lua.LFunction, name string, cfg *Config) error {
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return fmt.Errorf("config: unable to run %v, cause %w", name, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return fmt.Errorf("config: %v must return a table, got %v", name, ret.Type())
	}
	var raw luaFile
	if err := gluamapper.Map(tbl, &raw); err != nil {
		return fmt.Errorf("config: unable to map %v, cause %w", name, err)
	}
	return raw.applyTo(cfg)
}

func (f luaFile) applyTo(cfg *Config) error {
	setString(&cfg.Bind, f.Bind)
	setString(&cfg.Database, f.Database)
	setString(&cfg.SessionBackend, f.SessionBackend)
	setString(&cfg.RedisAddr, f.RedisAddr)
	setString(&cfg.RedisPrefix, f.RedisPrefix)
	setString(&cfg.CookieName, f.CookieName)
	setString(&cfg.LogLevel, f.LogLevel)
	if f.InsecureCookie != nil {
		cfg.InsecureCookie = *f.InsecureCookie
	}
	if f.LogPretty != nil {
		cfg.LogPretty = *f.LogPretty
	}
	if f.HashWorkers != nil {
		cfg.HashWorkers = *f.HashWorkers
	}
	if err := setDuration(&cfg.IdleTimeout, f.IdleTimeout, "idle_timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.SweepInterval, f.SweepInterval, "sweep_interval"); err != nil {
		return err
	}
	if a := f.Argon2; a != nil {
		if a.Memory != nil {
			cfg.Argon2.Memory = *a.Memory
		}
		if a.Time != nil {
			cfg.Argon2.Time = *a.Time
		}
		if a.Parallelism != nil {
			cfg.Argon2.Parallelism = *a.Parallelism
		}
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, field string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("config: invalid %v %q, cause %w", field, *v, err)
	}
	*dst = d
	return nil
}
