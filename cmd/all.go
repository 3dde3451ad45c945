package cmd

import (
	_ "github.com/APasz/Yukibot/cmd/app"
	_ "github.com/APasz/Yukibot/cmd/root"
	_ "github.com/APasz/Yukibot/cmd/server"
)
